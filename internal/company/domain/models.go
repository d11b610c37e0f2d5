package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/fiscal"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/money"
)

type InsuranceCompany struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"type:varchar(200);not null" json:"name"`
	RUC          string       `gorm:"column:ruc;type:varchar(13);not null;uniqueIndex" json:"ruc"`
	ContactEmail string       `gorm:"type:varchar(254)" json:"contact_email,omitempty"`
	Phone        string       `gorm:"type:varchar(32)" json:"phone,omitempty"`
	IsActive     bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (InsuranceCompany) TableName() string { return "insurance_companies" }

// EmissionRight is one row of the emission fee table.
type EmissionRight struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	MinAmount  decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"min_amount"`
	MaxAmount  decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"max_amount"`
	Fee        decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"fee"`
	ValidFrom  time.Time       `gorm:"not null" json:"valid_from"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	IsActive   bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
}

func (EmissionRight) TableName() string { return "emission_rights" }

func (e EmissionRight) Tier() fiscal.Tier {
	return fiscal.Tier{Min: e.MinAmount, Max: e.MaxAmount, Fee: e.Fee}
}

// InEffect reports whether the row applies on date.
func (e EmissionRight) InEffect(date time.Time) bool {
	if !e.IsActive || date.Before(e.ValidFrom) {
		return false
	}
	return e.ValidUntil == nil || !date.After(*e.ValidUntil)
}

func (e EmissionRight) Validate() error {
	var c apperror.Collector
	if e.MinAmount.IsNegative() {
		c.Add("min_amount", "non_negative", "min_amount cannot be negative")
	}
	if e.MaxAmount.LessThanOrEqual(e.MinAmount) {
		c.Add("max_amount", "greater_than_min", "max_amount must be greater than min_amount")
	}
	if e.Fee.IsNegative() {
		c.Add("fee", "non_negative", "fee cannot be negative")
	}
	if e.ValidUntil != nil && !e.ValidUntil.After(e.ValidFrom) {
		c.Add("valid_until", "after_valid_from", "valid_until must be after valid_from")
	}
	return c.Err()
}

type RetentionType struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(100);not null" json:"name"`
	Code        string          `gorm:"type:varchar(20);not null;uniqueIndex" json:"code"`
	Percentage  decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"percentage"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (RetentionType) TableName() string { return "retention_types" }

type PolicyRetention struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id"`
	PolicyID         snowflake.ID     `gorm:"not null;uniqueIndex:ux_policy_retention" json:"policy_id"`
	RetentionTypeID  snowflake.ID     `gorm:"not null;uniqueIndex:ux_policy_retention" json:"retention_type_id"`
	CustomPercentage *decimal.Decimal `gorm:"type:numeric(5,2)" json:"custom_percentage,omitempty"`
	AppliesToPremium bool             `gorm:"not null" json:"applies_to_premium"`
	AppliesToTotal   bool             `gorm:"not null;default:false" json:"applies_to_total"`
	IsActive         bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time        `gorm:"not null" json:"created_at"`

	RetentionType RetentionType `gorm:"foreignKey:RetentionTypeID" json:"retention_type"`
}

func (PolicyRetention) TableName() string { return "policy_retentions" }

// EffectivePercentage prefers the policy override over the type default.
func (r PolicyRetention) EffectivePercentage() decimal.Decimal {
	if r.CustomPercentage != nil {
		return *r.CustomPercentage
	}
	return r.RetentionType.Percentage
}

func (r PolicyRetention) Fiscal() fiscal.Retention {
	return fiscal.Retention{
		Percentage:       r.EffectivePercentage(),
		AppliesToPremium: r.AppliesToPremium,
		AppliesToTotal:   r.AppliesToTotal,
	}
}

func (r PolicyRetention) Validate() error {
	var c apperror.Collector
	if !r.AppliesToPremium && !r.AppliesToTotal {
		c.Add("applies_to_premium", "required_base", "retention must apply to the premium, the total, or both")
	}
	if r.CustomPercentage != nil && !money.IsValidPercentage(*r.CustomPercentage) {
		c.Add("custom_percentage", "percentage_range", "custom_percentage must be between 0 and 100")
	}
	return c.Err()
}
