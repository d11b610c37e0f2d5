package fiscal

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/pkg/money"
)

var (
	ErrInvalidTierRange = errors.New("invalid_emission_tier_range")
	ErrOverlappingTiers = errors.New("overlapping_emission_tiers")
)

// Tier charges Fee for premiums within [Min, Max].
type Tier struct {
	Min decimal.Decimal
	Max decimal.Decimal
	Fee decimal.Decimal
}

func (t Tier) Contains(premium decimal.Decimal) bool {
	return premium.GreaterThanOrEqual(t.Min) && premium.LessThanOrEqual(t.Max)
}

func (t Tier) Overlaps(o Tier) bool {
	return t.Min.LessThanOrEqual(o.Max) && o.Min.LessThanOrEqual(t.Max)
}

// EmissionTable is an ordered, non-overlapping set of tiers.
type EmissionTable struct {
	tiers []Tier
}

func NewEmissionTable(tiers []Tier) (EmissionTable, error) {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min.LessThan(sorted[j].Min) })

	for i, t := range sorted {
		if t.Min.IsNegative() || t.Max.LessThan(t.Min) || t.Fee.IsNegative() {
			return EmissionTable{}, ErrInvalidTierRange
		}
		if i > 0 && sorted[i-1].Overlaps(t) {
			return EmissionTable{}, ErrOverlappingTiers
		}
	}
	return EmissionTable{tiers: sorted}, nil
}

// Lookup returns the fee of the tier containing premium, or zero.
func (e EmissionTable) Lookup(premium decimal.Decimal) decimal.Decimal {
	for _, t := range e.tiers {
		if t.Contains(premium) {
			return money.Round2(t.Fee)
		}
	}
	return money.Zero
}

func (e EmissionTable) Len() int { return len(e.tiers) }
