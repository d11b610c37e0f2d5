package fiscal

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/pkg/money"
)

// Retention is an active withholding rule on a policy.
type Retention struct {
	Percentage       decimal.Decimal
	AppliesToPremium bool
	AppliesToTotal   bool
}

func Withholding(b Breakdown, retentions []Retention) decimal.Decimal {
	total := money.Zero
	for _, r := range retentions {
		if r.AppliesToPremium {
			total = total.Add(money.Percent(b.Premium, r.Percentage))
		}
		if r.AppliesToTotal {
			total = total.Add(money.Percent(b.Contributions(), r.Percentage))
		}
	}
	return total
}
