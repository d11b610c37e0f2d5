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

type CreateSettlementRequest struct {
	ClaimID      snowflake.ID     `json:"claim_id" validate:"required"`
	TotalClaimed *decimal.Decimal `json:"total_claimed"`
	Deductible   *decimal.Decimal `json:"deductible"`
	Depreciation decimal.Decimal  `json:"depreciation"`
	Notes        string           `json:"notes"`
}

type AdjustSettlementRequest struct {
	TotalClaimed *decimal.Decimal `json:"total_claimed"`
	Deductible   *decimal.Decimal `json:"deductible"`
	Depreciation *decimal.Decimal `json:"depreciation"`
	Notes        *string          `json:"notes"`
}

type MarkPaidRequest struct {
	PaymentDate      *time.Time `json:"payment_date"`
	PaymentReference string     `json:"payment_reference" validate:"max=100"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, s *Settlement) error
	Update(ctx context.Context, db *gorm.DB, s *Settlement) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Settlement, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Settlement, error)
	FindByClaimID(ctx context.Context, db *gorm.DB, claimID snowflake.ID) (*Settlement, error)
	List(ctx context.Context, db *gorm.DB, status Status) ([]Settlement, error)
	// ListPastDeadline returns signed settlements whose deadline is before now.
	ListPastDeadline(ctx context.Context, db *gorm.DB, now time.Time) ([]Settlement, error)
}

type Service interface {
	Create(ctx context.Context, actor permission.Actor, req CreateSettlementRequest) (Settlement, error)
	Get(ctx context.Context, id snowflake.ID) (Settlement, error)
	GetByClaim(ctx context.Context, claimID snowflake.ID) (Settlement, error)
	List(ctx context.Context, status string) ([]Settlement, error)

	Adjust(ctx context.Context, actor permission.Actor, id snowflake.ID, req AdjustSettlementRequest) (Settlement, error)
	Submit(ctx context.Context, actor permission.Actor, id snowflake.ID) (Settlement, error)
	Approve(ctx context.Context, actor permission.Actor, id snowflake.ID) (Settlement, error)
	Reject(ctx context.Context, actor permission.Actor, id snowflake.ID, reason string) (Settlement, error)
	// SignAndCascade signs the settlement and, when its claim is settled,
	// moves the claim to paid in the same transaction.
	SignAndCascade(ctx context.Context, actor permission.Actor, id snowflake.ID) (Settlement, error)
	MarkPaid(ctx context.Context, actor permission.Actor, id snowflake.ID, req MarkPaidRequest) (Settlement, error)

	OverdueForPayment(ctx context.Context) ([]Settlement, error)
}

var (
	ErrNotFound      = errors.New("settlement_not_found")
	ErrAlreadyExists = errors.New("settlement_already_exists")
	ErrClaimNotFound = errors.New("claim_not_found")
	ErrClaimNotReady = errors.New("claim_not_approved")
)
