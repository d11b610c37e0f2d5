package identifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/smallbiznis/coverdesk/internal/testutil"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type numberedDoc struct {
	ID     uint   `gorm:"primaryKey"`
	Number string `gorm:"uniqueIndex"`
}

func (numberedDoc) TableName() string { return "numbered_docs" }

var testSeq = Sequence{Prefix: "TST", Table: "numbered_docs", Column: "number"}

func setup(t *testing.T) (*gorm.DB, *Generator) {
	db := testutil.Open(t)
	require.NoError(t, db.AutoMigrate(&Counter{}, &numberedDoc{}))
	return db, NewGenerator(Params{Log: zaptest.NewLogger(t)})
}

func create(t *testing.T, db *gorm.DB, g *Generator, year int) string {
	var id string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = g.Next(context.Background(), tx, testSeq, year)
		if err != nil {
			return err
		}
		return tx.Create(&numberedDoc{Number: id}).Error
	})
	require.NoError(t, err)
	return id
}

func TestNextStartsAtOneAndIncreases(t *testing.T) {
	db, g := setup(t)

	first := create(t, db, g, 2026)
	second := create(t, db, g, 2026)
	other := create(t, db, g, 2027)

	assert.Equal(t, "TST-2026-000001", first)
	assert.Equal(t, "TST-2026-000002", second)
	assert.Equal(t, "TST-2027-000001", other)
	assert.True(t, IsValid(first))
	assert.Less(t, first, second)
}

func TestNextSeedsFromExistingRows(t *testing.T) {
	db, g := setup(t)
	require.NoError(t, db.Create(&numberedDoc{Number: "TST-2026-000041"}).Error)
	require.NoError(t, db.Create(&numberedDoc{Number: "TST-2025-000900"}).Error)

	assert.Equal(t, "TST-2026-000042", create(t, db, g, 2026))
}

func TestNextSkipsManuallyTakenValues(t *testing.T) {
	db, g := setup(t)
	assert.Equal(t, "TST-2026-000001", create(t, db, g, 2026))

	require.NoError(t, db.Create(&numberedDoc{Number: "TST-2026-000002"}).Error)
	assert.Equal(t, "TST-2026-000003", create(t, db, g, 2026))
}

func TestRolledBackTransactionReleasesValue(t *testing.T) {
	db, g := setup(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := g.Next(context.Background(), tx, testSeq, 2026)
		require.NoError(t, err)
		return errors.New("abort")
	})
	require.Error(t, err)

	assert.Equal(t, "TST-2026-000001", create(t, db, g, 2026))
}

func TestConcurrentCreatesNeverCollide(t *testing.T) {
	db, g := setup(t)

	const n = 20
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- create(t, db, g, 2026)
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestWithRetry(t *testing.T) {
	_, g := setup(t)

	calls := 0
	err := g.WithRetry(context.Background(), testSeq, func() error {
		calls++
		if calls < 2 {
			return errors.New("UNIQUE constraint failed: numbered_docs.number")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	err = g.WithRetry(context.Background(), testSeq, func() error {
		return errors.New("UNIQUE constraint failed: numbered_docs.number")
	})
	assert.ErrorIs(t, err, apperror.ErrDuplicateIdentifier)

	plain := errors.New("boom")
	assert.Equal(t, plain, g.WithRetry(context.Background(), testSeq, func() error { return plain }))
}

func TestParse(t *testing.T) {
	prefix, year, seq, err := Parse("POL-2026-000123")
	require.NoError(t, err)
	assert.Equal(t, "POL", prefix)
	assert.Equal(t, 2026, year)
	assert.Equal(t, int64(123), seq)

	_, _, _, err = Parse("POL-26-1")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}
