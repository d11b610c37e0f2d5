package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/coverdesk/internal/company/domain"
	"github.com/smallbiznis/coverdesk/internal/permission"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options controls the optional bootstrap admin. Both fields empty skips it.
type Options struct {
	AdminUsername string
	AdminEmail    string
}

type tier struct {
	min, max, fee string
}

var defaultTiers = []tier{
	{"0.00", "1000.00", "5.00"},
	{"1000.01", "5000.00", "10.00"},
	{"5000.01", "10000.00", "15.00"},
	{"10000.01", "50000.00", "25.00"},
	{"50000.01", "100000.00", "50.00"},
	{"100000.01", "999999999.00", "75.00"},
}

// Run seeds the emission table and the bootstrap admin. Existing rows are
// left untouched so it is safe on every start.
func Run(db *gorm.DB, node *snowflake.Node, opts Options, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := ensureEmissionTiers(ctx, tx, node)
		if err != nil {
			return err
		}
		if created > 0 {
			log.Info("seeded default emission tiers", zap.Int("count", created))
		}

		admin, err := ensureAdmin(ctx, tx, node, opts)
		if err != nil {
			return err
		}
		if admin != nil {
			log.Info("seeded bootstrap admin", zap.String("username", admin.Username))
		}
		return nil
	})
}

func ensureEmissionTiers(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (int, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&companydomain.EmissionRight{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	validFrom := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]companydomain.EmissionRight, 0, len(defaultTiers))
	for _, t := range defaultTiers {
		rows = append(rows, companydomain.EmissionRight{
			ID:        node.Generate(),
			MinAmount: money.MustParse(t.min),
			MaxAmount: money.MustParse(t.max),
			Fee:       money.MustParse(t.fee),
			ValidFrom: validFrom,
			IsActive:  true,
			CreatedAt: now,
		})
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

func ensureAdmin(ctx context.Context, tx *gorm.DB, node *snowflake.Node, opts Options) (*userdomain.User, error) {
	username := strings.TrimSpace(opts.AdminUsername)
	email := strings.ToLower(strings.TrimSpace(opts.AdminEmail))
	if username == "" || email == "" {
		return nil, nil
	}

	var existing userdomain.User
	err := tx.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	admin := userdomain.User{
		ID:        node.Generate(),
		Username:  username,
		FullName:  "Administrator",
		Email:     email,
		Role:      permission.RoleAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}
