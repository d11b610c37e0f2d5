package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/fiscal"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"gorm.io/gorm"
)

type CreateCompanyRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	RUC          string `json:"ruc" validate:"required,len=13,numeric"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"max=32"`
}

type CreateEmissionRightRequest struct {
	MinAmount  decimal.Decimal `json:"min_amount"`
	MaxAmount  decimal.Decimal `json:"max_amount"`
	Fee        decimal.Decimal `json:"fee"`
	ValidFrom  time.Time       `json:"valid_from"`
	ValidUntil *time.Time      `json:"valid_until"`
}

type CreateRetentionTypeRequest struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Code        string          `json:"code" validate:"required,max=20"`
	Percentage  decimal.Decimal `json:"percentage"`
	Description string          `json:"description"`
}

type AttachRetentionRequest struct {
	PolicyID         snowflake.ID     `json:"-"`
	RetentionTypeID  snowflake.ID     `json:"retention_type_id" validate:"required"`
	CustomPercentage *decimal.Decimal `json:"custom_percentage"`
	AppliesToPremium bool             `json:"applies_to_premium"`
	AppliesToTotal   bool             `json:"applies_to_total"`
}

type Service interface {
	CreateCompany(ctx context.Context, actor permission.Actor, req CreateCompanyRequest) (InsuranceCompany, error)
	GetCompany(ctx context.Context, id snowflake.ID) (InsuranceCompany, error)
	ListCompanies(ctx context.Context) ([]InsuranceCompany, error)

	CreateEmissionRight(ctx context.Context, actor permission.Actor, req CreateEmissionRightRequest) (EmissionRight, error)
	ListEmissionRights(ctx context.Context) ([]EmissionRight, error)

	CreateRetentionType(ctx context.Context, actor permission.Actor, req CreateRetentionTypeRequest) (RetentionType, error)
	ListRetentionTypes(ctx context.Context) ([]RetentionType, error)
	AttachRetention(ctx context.Context, actor permission.Actor, req AttachRetentionRequest) (PolicyRetention, error)
}

// FiscalSource supplies the tables the fiscal calculator reads. db lets
// callers read inside their own transaction.
type FiscalSource interface {
	EmissionTable(ctx context.Context, db *gorm.DB, on time.Time) (fiscal.EmissionTable, error)
	Retentions(ctx context.Context, db *gorm.DB, policyID snowflake.ID) ([]fiscal.Retention, error)
}

var (
	ErrCompanyNotFound       = errors.New("insurance_company_not_found")
	ErrRetentionTypeNotFound = errors.New("retention_type_not_found")
	ErrDuplicateRUC          = errors.New("duplicate_ruc")
	ErrDuplicateCode         = errors.New("duplicate_retention_code")
	ErrOverlappingTier       = errors.New("overlapping_emission_tier")
)
