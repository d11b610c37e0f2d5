package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertCompany(ctx context.Context, db *gorm.DB, company *InsuranceCompany) error
	FindCompany(ctx context.Context, db *gorm.DB, id snowflake.ID) (*InsuranceCompany, error)
	ListCompanies(ctx context.Context, db *gorm.DB) ([]InsuranceCompany, error)

	InsertEmissionRight(ctx context.Context, db *gorm.DB, row *EmissionRight) error
	ListEmissionRights(ctx context.Context, db *gorm.DB, activeOn *time.Time) ([]EmissionRight, error)

	InsertRetentionType(ctx context.Context, db *gorm.DB, row *RetentionType) error
	FindRetentionType(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RetentionType, error)
	ListRetentionTypes(ctx context.Context, db *gorm.DB) ([]RetentionType, error)

	InsertPolicyRetention(ctx context.Context, db *gorm.DB, row *PolicyRetention) error
	ListActivePolicyRetentions(ctx context.Context, db *gorm.DB, policyID snowflake.ID) ([]PolicyRetention, error)
}
