package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status    Status
	InsurerID snowflake.ID
	EndAfter  *time.Time
	EndBefore *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, policy *Policy) error
	Update(ctx context.Context, db *gorm.DB, policy *Policy) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Policy, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Policy, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Policy, error)
	// CountReferences counts claims, invoices and assets pointing at the policy.
	CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
