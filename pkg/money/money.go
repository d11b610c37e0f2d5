package money

import "github.com/shopspring/decimal"

var (
	Zero    = decimal.Zero
	Hundred = decimal.NewFromInt(100)
)

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns round2(base * pct / 100).
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(Hundred))
}

// Rate returns round2(base * rate).
func Rate(base, rate decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(rate))
}

func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThanOrEqual(b) {
		return a
	}
	return b
}

func IsValidPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(Hundred)
}

// MustParse is intended for constants and tests.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
