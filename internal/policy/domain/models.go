package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/fiscal"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusRenewed   Status = "renewed"
)

type Policy struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	PolicyNumber string        `gorm:"type:varchar(32);not null;uniqueIndex" json:"policy_number"`
	InsurerID    snowflake.ID  `gorm:"not null;index" json:"insurer_id"`
	BrokerID     *snowflake.ID `gorm:"index" json:"broker_id,omitempty"`
	Group        string        `gorm:"column:policy_group;type:varchar(100)" json:"group"`
	Subgroup     string        `gorm:"type:varchar(100)" json:"subgroup"`
	Branch       string        `gorm:"type:varchar(100)" json:"branch"`
	StartDate    time.Time     `gorm:"not null" json:"start_date"`
	EndDate      time.Time     `gorm:"not null;index" json:"end_date"`
	IssueDate    time.Time     `gorm:"not null" json:"issue_date"`

	InsuredValue                decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"insured_value"`
	Premium                     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"premium"`
	SuperintendenceContribution decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"superintendence_contribution"`
	FarmInsuranceContribution   decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"farm_insurance_contribution"`
	EmissionRight               decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"emission_right"`
	TaxBase                     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"tax_base"`
	VAT                         decimal.Decimal `gorm:"column:vat;type:numeric(15,2);not null" json:"vat"`
	TotalBilled                 decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"total_billed"`

	Status             Status        `gorm:"type:varchar(16);not null;index" json:"status"`
	ResponsibleUserID  snowflake.ID  `gorm:"not null;index" json:"responsible_user_id"`
	RenewedFromID      *snowflake.ID `gorm:"index" json:"renewed_from_id,omitempty"`
	CancellationReason string        `gorm:"type:text" json:"cancellation_reason,omitempty"`
	Notes              string        `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt          time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"not null" json:"updated_at"`
}

func (Policy) TableName() string { return "policies" }

// ApplyFiscal copies a computed breakdown onto the policy.
func (p *Policy) ApplyFiscal(b fiscal.Breakdown) {
	p.Premium = b.Premium
	p.SuperintendenceContribution = b.SuperintendenceContribution
	p.FarmInsuranceContribution = b.FarmInsuranceContribution
	p.EmissionRight = b.EmissionRight
	p.TaxBase = b.TaxBase
	p.VAT = b.VAT
	p.TotalBilled = b.Total()
}

func (p Policy) Validate() error {
	var c apperror.Collector
	if p.InsurerID == 0 {
		c.Add("insurer_id", "required", "insurer_id is required")
	}
	if p.ResponsibleUserID == 0 {
		c.Add("responsible_user_id", "required", "responsible_user_id is required")
	}
	if p.StartDate.IsZero() {
		c.Add("start_date", "required", "start_date is required")
	}
	if p.EndDate.IsZero() {
		c.Add("end_date", "required", "end_date is required")
	} else if !p.EndDate.After(p.StartDate) {
		c.Add("end_date", "after_start_date", "end_date must be after start_date")
	}
	if !p.InsuredValue.IsPositive() {
		c.Add("insured_value", "positive", "insured_value must be greater than zero")
	}
	if !p.Premium.IsPositive() {
		c.Add("premium", "positive", "premium must be greater than zero")
	}
	return c.Err()
}

// Editable reports whether terms may still change.
func (p Policy) Editable() bool {
	return p.Status == StatusActive
}

func (p Policy) DaysUntilExpiry(now time.Time) int {
	return clock.DaysBetween(now, p.EndDate)
}

func (p Policy) IsExpiringSoon(now time.Time, days int) bool {
	if p.Status != StatusActive {
		return false
	}
	left := p.DaysUntilExpiry(now)
	return left >= 0 && left <= days
}

// IsPastEnd reports whether the coverage window has closed.
func (p Policy) IsPastEnd(now time.Time) bool {
	return clock.Date(now).After(clock.Date(p.EndDate))
}

// CoversDate reports whether date falls within an active coverage window.
func (p Policy) CoversDate(date time.Time) bool {
	d := clock.Date(date)
	return p.Status == StatusActive && !d.Before(clock.Date(p.StartDate)) && !d.After(clock.Date(p.EndDate))
}
