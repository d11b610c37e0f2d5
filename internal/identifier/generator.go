package identifier

import (
	"context"
	"fmt"

	"github.com/smallbiznis/coverdesk/internal/observability/metrics"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultAttempts = 3

// Counter is the last issued value per prefix and year.
type Counter struct {
	Prefix    string `gorm:"primaryKey;type:varchar(8)"`
	Year      int    `gorm:"primaryKey"`
	LastValue int64  `gorm:"not null;default:0"`
}

func (Counter) TableName() string { return "identifier_sequences" }

type Params struct {
	fx.In

	Log     *zap.Logger
	Metrics *metrics.Workflow `optional:"true"`
}

type Generator struct {
	log      *zap.Logger
	metrics  *metrics.Workflow
	attempts int
}

func NewGenerator(p Params) *Generator {
	return &Generator{
		log:      p.Log.Named("identifier.generator"),
		metrics:  p.Metrics,
		attempts: defaultAttempts,
	}
}

// Next issues the next identifier for seq in year. tx must be the caller's
// open transaction so the increment commits or rolls back with the insert.
func (g *Generator) Next(ctx context.Context, tx *gorm.DB, seq Sequence, year int) (string, error) {
	tx = tx.WithContext(ctx)
	if err := g.ensureCounter(tx, seq, year); err != nil {
		return "", err
	}

	for {
		if err := tx.Exec(
			"UPDATE identifier_sequences SET last_value = last_value + 1 WHERE prefix = ? AND year = ?",
			seq.Prefix, year,
		).Error; err != nil {
			return "", err
		}

		var value int64
		if err := tx.Raw(
			"SELECT last_value FROM identifier_sequences WHERE prefix = ? AND year = ?",
			seq.Prefix, year,
		).Scan(&value).Error; err != nil {
			return "", err
		}
		if value > maxSequence {
			return "", ErrSequenceExhausted
		}

		id := Format(seq.Prefix, year, value)
		taken, err := g.exists(tx, seq, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
		g.log.Warn("skipping identifier already in use", zap.String("identifier", id))
	}
}

// WithRetry runs create again when it fails on a unique constraint.
func (g *Generator) WithRetry(ctx context.Context, seq Sequence, create func() error) error {
	for attempt := 1; attempt <= g.attempts; attempt++ {
		err := create()
		if err == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return err
		}
		g.metrics.IdentifierRetry(seq.Prefix)
		g.log.Warn("identifier collision, retrying",
			zap.String("prefix", seq.Prefix),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return apperror.ErrDuplicateIdentifier
}

func (g *Generator) ensureCounter(tx *gorm.DB, seq Sequence, year int) error {
	var count int64
	if err := tx.Model(&Counter{}).
		Where("prefix = ? AND year = ?", seq.Prefix, year).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seed, err := g.highestExisting(tx, seq, year)
	if err != nil {
		return err
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Counter{Prefix: seq.Prefix, Year: year, LastValue: seed}).Error
}

func (g *Generator) highestExisting(tx *gorm.DB, seq Sequence, year int) (int64, error) {
	var ids []string
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIKE ? ORDER BY %s DESC LIMIT 1",
		seq.Column, seq.Table, seq.Column, seq.Column)
	if err := tx.Raw(query, fmt.Sprintf("%s-%04d-%%", seq.Prefix, year)).Scan(&ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	_, _, value, err := Parse(ids[0])
	if err != nil {
		return 0, nil
	}
	return value, nil
}

func (g *Generator) exists(tx *gorm.DB, seq Sequence, id string) (bool, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE %s = ?", seq.Table, seq.Column)
	if err := tx.Raw(query, id).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
