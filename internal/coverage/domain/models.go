package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/money"
)

// Coverage is one named risk line on a policy with its own limit and deductible.
type Coverage struct {
	ID                   snowflake.ID    `gorm:"primaryKey" json:"id"`
	PolicyID             snowflake.ID    `gorm:"not null;index" json:"policy_id"`
	Name                 string          `gorm:"type:varchar(200);not null" json:"name"`
	Description          string          `gorm:"type:text" json:"description,omitempty"`
	InsuredLimit         decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"insured_limit"`
	DeductibleFixed      decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"deductible_fixed"`
	DeductiblePercentage decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"deductible_percentage"`
	CreatedAt            time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"not null" json:"updated_at"`
}

func (Coverage) TableName() string { return "coverages" }

func (c Coverage) Validate() error {
	var col apperror.Collector
	if c.PolicyID == 0 {
		col.Add("policy_id", "required", "policy_id is required")
	}
	if c.Name == "" {
		col.Add("name", "required", "name is required")
	}
	if !c.InsuredLimit.IsPositive() {
		col.Add("insured_limit", "positive", "insured_limit must be greater than zero")
	}
	if c.DeductibleFixed.IsNegative() {
		col.Add("deductible_fixed", "non_negative", "deductible_fixed cannot be negative")
	}
	if !money.IsValidPercentage(c.DeductiblePercentage) {
		col.Add("deductible_percentage", "percentage_range", "deductible_percentage must be between 0 and 100")
	}
	return col.Err()
}

// ResolveDeductible returns the larger of the fixed deductible and the
// percentage of the loss.
func ResolveDeductible(c Coverage, loss decimal.Decimal) decimal.Decimal {
	return money.Max(money.Round2(c.DeductibleFixed), money.Percent(loss, c.DeductiblePercentage))
}
