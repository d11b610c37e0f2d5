package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"gorm.io/gorm"
)

type CreateAssetRequest struct {
	AssetCode         string           `json:"asset_code"`
	Name              string           `json:"name" validate:"required,max=255"`
	Description       string           `json:"description"`
	AssetType         Type             `json:"asset_type" validate:"required"`
	Brand             string           `json:"brand" validate:"max=100"`
	Model             string           `json:"model" validate:"max=100"`
	SerialNumber      string           `json:"serial_number" validate:"max=100"`
	Location          string           `json:"location" validate:"required,max=255"`
	AcquisitionDate   time.Time        `json:"acquisition_date"`
	AcquisitionCost   decimal.Decimal  `json:"acquisition_cost"`
	CurrentValue      *decimal.Decimal `json:"current_value"`
	Condition         Condition        `json:"condition"`
	CustodianID       snowflake.ID     `json:"custodian_id"`
	InsurancePolicyID *snowflake.ID    `json:"insurance_policy_id"`
	IsInsured         bool             `json:"is_insured"`
}

type UpdateAssetRequest struct {
	Name              *string          `json:"name"`
	Description       *string          `json:"description"`
	Location          *string          `json:"location"`
	CurrentValue      *decimal.Decimal `json:"current_value"`
	Condition         *Condition       `json:"condition"`
	CustodianID       *snowflake.ID    `json:"custodian_id"`
	InsurancePolicyID *snowflake.ID    `json:"insurance_policy_id"`
	IsInsured         *bool            `json:"is_insured"`
}

type ListFilter struct {
	CustodianID snowflake.ID
	PolicyID    snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, asset *Asset) error
	Update(ctx context.Context, db *gorm.DB, asset *Asset) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Asset, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Asset, error)
}

type Service interface {
	Create(ctx context.Context, actor permission.Actor, req CreateAssetRequest) (Asset, error)
	Update(ctx context.Context, actor permission.Actor, id snowflake.ID, req UpdateAssetRequest) (Asset, error)
	Get(ctx context.Context, actor permission.Actor, id snowflake.ID) (Asset, error)
	// List returns every asset for staff and only custodied assets for requesters.
	List(ctx context.Context, actor permission.Actor) ([]Asset, error)
	// RefreshValue replaces the current value with the depreciated value.
	RefreshValue(ctx context.Context, actor permission.Actor, id snowflake.ID) (Asset, error)
	HasValidInsurance(ctx context.Context, id snowflake.ID) (bool, error)
}

var (
	ErrNotFound          = errors.New("asset_not_found")
	ErrPolicyNotFound    = errors.New("policy_not_found")
	ErrCustodianNotFound = errors.New("custodian_not_found")
	ErrDuplicateCode     = errors.New("duplicate_asset_code")
)
