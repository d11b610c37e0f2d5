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

type CreateInvoiceRequest struct {
	PolicyID    snowflake.ID     `json:"policy_id" validate:"required"`
	InvoiceDate *time.Time       `json:"invoice_date"`
	DueDate     *time.Time       `json:"due_date"`
	Premium     *decimal.Decimal `json:"premium"`
	Notes       string           `json:"notes"`
}

type UpdateInvoiceRequest struct {
	InvoiceDate *time.Time       `json:"invoice_date"`
	DueDate     *time.Time       `json:"due_date"`
	Premium     *decimal.Decimal `json:"premium"`
	Notes       *string          `json:"notes"`
}

type ListInvoiceRequest struct {
	PolicyID      string `form:"policy_id"`
	PaymentStatus string `form:"payment_status"`
}

type ListFilter struct {
	PolicyID      snowflake.ID
	PaymentStatus PaymentStatus
	DueAfter      *time.Time
	DueBefore     *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Invoice, error)
	// MarkOverdue flips pending invoices due before cutoff and returns them.
	MarkOverdue(ctx context.Context, db *gorm.DB, cutoff time.Time, at time.Time) ([]Invoice, error)
}

type Service interface {
	Create(ctx context.Context, actor permission.Actor, req CreateInvoiceRequest) (Invoice, error)
	Update(ctx context.Context, actor permission.Actor, id snowflake.ID, req UpdateInvoiceRequest) (Invoice, error)
	Get(ctx context.Context, id snowflake.ID) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) ([]Invoice, error)
	MarkPaid(ctx context.Context, actor permission.Actor, id snowflake.ID, paymentDate *time.Time) (Invoice, error)
	Cancel(ctx context.Context, actor permission.Actor, id snowflake.ID, reason string) (Invoice, error)
	// MarkOverdue flags every pending invoice past its due date.
	MarkOverdue(ctx context.Context) ([]Invoice, error)
	// DueWithin lists pending invoices falling due in the next days.
	DueWithin(ctx context.Context, days int) ([]Invoice, error)
}

var (
	ErrNotFound       = errors.New("invoice_not_found")
	ErrPolicyNotFound = errors.New("policy_not_found")
)
