package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"gorm.io/gorm"
)

type CreateCoverageRequest struct {
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	InsuredLimit         decimal.Decimal `json:"insured_limit"`
	DeductibleFixed      decimal.Decimal `json:"deductible_fixed"`
	DeductiblePercentage decimal.Decimal `json:"deductible_percentage"`
}

type UpdateCoverageRequest struct {
	Name                 *string          `json:"name"`
	Description          *string          `json:"description"`
	InsuredLimit         *decimal.Decimal `json:"insured_limit"`
	DeductibleFixed      *decimal.Decimal `json:"deductible_fixed"`
	DeductiblePercentage *decimal.Decimal `json:"deductible_percentage"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, coverage *Coverage) error
	Update(ctx context.Context, db *gorm.DB, coverage *Coverage) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Coverage, error)
	ListByPolicy(ctx context.Context, db *gorm.DB, policyID snowflake.ID) ([]Coverage, error)
}

type Service interface {
	Add(ctx context.Context, actor permission.Actor, policyID snowflake.ID, req CreateCoverageRequest) (Coverage, error)
	Update(ctx context.Context, actor permission.Actor, id snowflake.ID, req UpdateCoverageRequest) (Coverage, error)
	Get(ctx context.Context, id snowflake.ID) (Coverage, error)
	ListByPolicy(ctx context.Context, policyID snowflake.ID) ([]Coverage, error)
	// Quote returns the deductible a loss would carry under the coverage.
	Quote(ctx context.Context, id snowflake.ID, loss decimal.Decimal) (decimal.Decimal, error)
}

var (
	ErrNotFound       = errors.New("coverage_not_found")
	ErrPolicyNotFound = errors.New("policy_not_found")
	ErrPolicyClosed   = errors.New("policy_not_active")
)
