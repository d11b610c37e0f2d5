package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/money"
)

type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusSigned          Status = "signed"
	StatusPaid            Status = "paid"
	StatusRejected        Status = "rejected"
)

var lifecycle = map[Status][]Status{
	StatusDraft:           {StatusPendingApproval, StatusRejected},
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusApproved:        {StatusSigned},
	StatusSigned:          {StatusPaid},
}

func (s Status) CanMoveTo(target Status) bool {
	for _, next := range lifecycle[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Adjustable statuses still accept amount changes.
func (s Status) Adjustable() bool {
	return s == StatusDraft || s == StatusPendingApproval
}

type Settlement struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	ClaimID          snowflake.ID    `gorm:"not null;uniqueIndex" json:"claim_id"`
	SettlementNumber string          `gorm:"type:varchar(32);not null;uniqueIndex" json:"settlement_number"`
	TotalClaimed     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"total_claimed"`
	Deductible       decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"deductible"`
	Depreciation     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"depreciation"`
	FinalPayable     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"final_payable"`
	Status           Status          `gorm:"type:varchar(20);not null;index" json:"status"`
	SignatureDate    *time.Time      `json:"signature_date,omitempty"`
	PaymentDeadline  *time.Time      `gorm:"index" json:"payment_deadline,omitempty"`
	PaymentDate      *time.Time      `json:"payment_date,omitempty"`
	PaymentReference string          `gorm:"type:varchar(100)" json:"payment_reference,omitempty"`
	RejectionReason  string          `gorm:"type:text" json:"rejection_reason,omitempty"`
	Notes            string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedByID      snowflake.ID    `gorm:"not null" json:"created_by_id"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updated_at"`
}

func (Settlement) TableName() string { return "claim_settlements" }

// Compute returns total - deductible - depreciation. A negative result is a
// ValidationError on final_payable.
func Compute(total, deductible, depreciation decimal.Decimal) (decimal.Decimal, error) {
	var c apperror.Collector
	if total.IsNegative() {
		c.Add("total_claimed", "non_negative", "total_claimed cannot be negative")
	}
	if deductible.IsNegative() {
		c.Add("deductible", "non_negative", "deductible cannot be negative")
	}
	if depreciation.IsNegative() {
		c.Add("depreciation", "non_negative", "depreciation cannot be negative")
	}
	if err := c.Err(); err != nil {
		return decimal.Zero, err
	}

	final := money.Round2(total).Sub(money.Round2(deductible)).Sub(money.Round2(depreciation))
	if final.IsNegative() {
		return decimal.Zero, apperror.NewValidationError("final_payable", "non_negative",
			"deductible plus depreciation cannot exceed total_claimed")
	}
	return final, nil
}

// Recompute refreshes FinalPayable from the component amounts.
func (s *Settlement) Recompute() error {
	final, err := Compute(s.TotalClaimed, s.Deductible, s.Depreciation)
	if err != nil {
		return err
	}
	s.TotalClaimed = money.Round2(s.TotalClaimed)
	s.Deductible = money.Round2(s.Deductible)
	s.Depreciation = money.Round2(s.Depreciation)
	s.FinalPayable = final
	return nil
}

// IsOverdueForPayment reports whether a signed settlement passed its deadline.
func (s Settlement) IsOverdueForPayment(now time.Time) bool {
	return s.Status == StatusSigned && s.PaymentDeadline != nil && now.After(*s.PaymentDeadline)
}
