package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/fiscal"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentOverdue   PaymentStatus = "overdue"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Open invoices still expect a payment.
func (s PaymentStatus) Open() bool {
	return s == PaymentPending || s == PaymentOverdue
}

type Invoice struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceNumber string       `gorm:"type:varchar(32);not null;uniqueIndex" json:"invoice_number"`
	PolicyID      snowflake.ID `gorm:"not null;index" json:"policy_id"`
	InvoiceDate   time.Time    `gorm:"not null" json:"invoice_date"`
	DueDate       time.Time    `gorm:"not null;index" json:"due_date"`

	Premium                     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"premium"`
	SuperintendenceContribution decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"superintendence_contribution"`
	FarmInsuranceContribution   decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"farm_insurance_contribution"`
	EmissionRight               decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"emission_right"`
	TaxBase                     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"tax_base"`
	VAT                         decimal.Decimal `gorm:"column:vat;type:numeric(15,2);not null" json:"vat"`
	Withholding                 decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"withholding"`
	EarlyPaymentDiscount        decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"early_payment_discount"`
	Total                       decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"total"`

	PaymentStatus      PaymentStatus `gorm:"type:varchar(16);not null;index" json:"payment_status"`
	PaymentDate        *time.Time    `json:"payment_date,omitempty"`
	CancellationReason string        `gorm:"type:text" json:"cancellation_reason,omitempty"`
	Notes              string        `gorm:"type:text" json:"notes,omitempty"`
	CreatedByID        snowflake.ID  `gorm:"not null" json:"created_by_id"`
	CreatedAt          time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

func (i *Invoice) ApplyFiscal(b fiscal.InvoiceBreakdown) {
	i.Premium = b.Premium
	i.SuperintendenceContribution = b.SuperintendenceContribution
	i.FarmInsuranceContribution = b.FarmInsuranceContribution
	i.EmissionRight = b.EmissionRight
	i.TaxBase = b.TaxBase
	i.VAT = b.VAT
	i.Withholding = b.Withholding
	i.EarlyPaymentDiscount = b.EarlyPaymentDiscount
	i.Total = b.Total
}

// ValidateInput checks the fields a caller supplies before fiscal fields
// are derived.
func (i Invoice) ValidateInput() error {
	var c apperror.Collector
	if i.PolicyID == 0 {
		c.Add("policy_id", "required", "policy_id is required")
	}
	if i.InvoiceDate.IsZero() {
		c.Add("invoice_date", "required", "invoice_date is required")
	}
	if !i.DueDate.After(i.InvoiceDate) {
		c.Add("due_date", "after_invoice_date", "due_date must be after invoice_date")
	}
	if !i.Premium.IsPositive() {
		c.Add("premium", "positive", "premium must be greater than zero")
	}
	return c.Err()
}

func (i Invoice) Validate() error {
	var c apperror.Collector
	if err := c.Merge(i.ValidateInput()); err != nil {
		return err
	}
	if i.Total.IsNegative() {
		c.Add("total", "non_negative", "withholding and discount cannot exceed the billed amount")
	}
	if i.PaymentStatus == PaymentPaid {
		if i.PaymentDate == nil {
			c.Add("payment_date", "required", "a paid invoice needs a payment date")
		} else if clock.Date(*i.PaymentDate).Before(clock.Date(i.InvoiceDate)) {
			c.Add("payment_date", "before_invoice_date", "payment_date cannot be before invoice_date")
		}
	}
	return c.Err()
}

// IsPaymentDue reports whether an open invoice falls due within days of now.
func (i Invoice) IsPaymentDue(now time.Time, days int) bool {
	if i.PaymentStatus != PaymentPending {
		return false
	}
	left := clock.DaysBetween(now, i.DueDate)
	return left >= 0 && left <= days
}

// IsOverdue reports whether an open invoice is past its due date.
func (i Invoice) IsOverdue(now time.Time) bool {
	return i.PaymentStatus.Open() && clock.Date(now).After(clock.Date(i.DueDate))
}
