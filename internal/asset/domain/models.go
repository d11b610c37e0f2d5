package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/clock"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/money"
)

type Type string

const (
	TypeVehicle     Type = "vehicle"
	TypeEquipment   Type = "equipment"
	TypeMachinery   Type = "machinery"
	TypeElectronics Type = "electronics"
	TypeFurniture   Type = "furniture"
	TypeProperty    Type = "property"
	TypeOther       Type = "other"
)

func (t Type) Valid() bool {
	switch t {
	case TypeVehicle, TypeEquipment, TypeMachinery, TypeElectronics, TypeFurniture, TypeProperty, TypeOther:
		return true
	}
	return false
}

type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
	ConditionDamaged   Condition = "damaged"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged:
		return true
	}
	return false
}

var (
	// AnnualDepreciation is the straight-line yearly loss of value.
	AnnualDepreciation = decimal.RequireFromString("0.10")
	// ResidualFloor is the share of cost an asset never depreciates below.
	ResidualFloor = decimal.RequireFromString("0.10")

	daysPerYear = decimal.RequireFromString("365.25")
	maxYears    = decimal.NewFromInt(10)
)

type Asset struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	AssetCode         string          `gorm:"type:varchar(50);not null;uniqueIndex" json:"asset_code"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	Description       string          `gorm:"type:text" json:"description,omitempty"`
	AssetType         Type            `gorm:"type:varchar(20);not null" json:"asset_type"`
	Brand             string          `gorm:"type:varchar(100)" json:"brand,omitempty"`
	Model             string          `gorm:"type:varchar(100)" json:"model,omitempty"`
	SerialNumber      string          `gorm:"type:varchar(100)" json:"serial_number,omitempty"`
	Location          string          `gorm:"type:varchar(255);not null" json:"location"`
	AcquisitionDate   time.Time       `gorm:"not null" json:"acquisition_date"`
	AcquisitionCost   decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"acquisition_cost"`
	CurrentValue      decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"current_value"`
	Condition         Condition       `gorm:"column:condition_status;type:varchar(20);not null" json:"condition"`
	CustodianID       snowflake.ID    `gorm:"not null;index" json:"custodian_id"`
	InsurancePolicyID *snowflake.ID   `gorm:"index" json:"insurance_policy_id,omitempty"`
	IsInsured         bool            `gorm:"not null;default:false" json:"is_insured"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
}

func (Asset) TableName() string { return "assets" }

func (a Asset) Validate() error {
	var c apperror.Collector
	if a.Name == "" {
		c.Add("name", "required", "name is required")
	}
	if a.Location == "" {
		c.Add("location", "required", "location is required")
	}
	if !a.AssetType.Valid() {
		c.Add("asset_type", "invalid", "asset_type is not recognised")
	}
	if !a.Condition.Valid() {
		c.Add("condition", "invalid", "condition is not recognised")
	}
	if a.AcquisitionDate.IsZero() {
		c.Add("acquisition_date", "required", "acquisition_date is required")
	}
	if a.AcquisitionCost.IsNegative() {
		c.Add("acquisition_cost", "non_negative", "acquisition_cost cannot be negative")
	}
	if a.CurrentValue.IsNegative() {
		c.Add("current_value", "non_negative", "current_value cannot be negative")
	}
	if a.CurrentValue.GreaterThan(a.AcquisitionCost) {
		c.Add("current_value", "exceeds_acquisition_cost", "current_value cannot exceed acquisition_cost")
	}
	if a.IsInsured && a.InsurancePolicyID == nil {
		c.Add("insurance_policy_id", "required_when_insured", "an insured asset needs an insurance policy")
	}
	if a.CustodianID == 0 {
		c.Add("custodian_id", "required", "custodian_id is required")
	}
	return c.Err()
}

// DepreciatedValue applies straight-line depreciation for the fractional
// years elapsed up to now, capped at ten years and floored at the residual.
func (a Asset) DepreciatedValue(now time.Time) decimal.Decimal {
	cost := money.Round2(a.AcquisitionCost)
	days := clock.DaysBetween(a.AcquisitionDate, now)
	if days <= 0 {
		return cost
	}
	years := decimal.NewFromInt(int64(days)).Div(daysPerYear)
	if years.GreaterThan(maxYears) {
		years = maxYears
	}
	value := money.Round2(cost.Mul(decimal.NewFromInt(1).Sub(AnnualDepreciation.Mul(years))))
	return money.Max(value, money.Round2(cost.Mul(ResidualFloor)))
}

// HasValidInsurance reports whether the asset is insured under a policy that
// is active on now.
func (a Asset) HasValidInsurance(policy *policydomain.Policy, now time.Time) bool {
	if !a.IsInsured || a.InsurancePolicyID == nil || policy == nil {
		return false
	}
	return policy.ID == *a.InsurancePolicyID && policy.CoversDate(now)
}
