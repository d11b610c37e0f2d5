package fiscal

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/pkg/money"
)

var (
	SuperintendenceRate = decimal.RequireFromString("0.035")
	FarmInsuranceRate   = decimal.RequireFromString("0.005")
	VATRate             = decimal.RequireFromString("0.15")
	EarlyPaymentRate    = decimal.RequireFromString("0.05")
)

// EarlyPaymentDays is the longest invoice term that still earns the discount.
const EarlyPaymentDays = 20

// Breakdown is the fiscal decomposition of a premium.
type Breakdown struct {
	Premium                     decimal.Decimal `json:"premium"`
	SuperintendenceContribution decimal.Decimal `json:"superintendence_contribution"`
	FarmInsuranceContribution   decimal.Decimal `json:"farm_insurance_contribution"`
	EmissionRight               decimal.Decimal `json:"emission_right"`
	TaxBase                     decimal.Decimal `json:"tax_base"`
	VAT                         decimal.Decimal `json:"vat"`
}

// Total is tax base plus VAT.
func (b Breakdown) Total() decimal.Decimal {
	return b.TaxBase.Add(b.VAT)
}

// Contributions is the base used by retentions applied to the total.
func (b Breakdown) Contributions() decimal.Decimal {
	return b.Premium.Add(b.SuperintendenceContribution).Add(b.FarmInsuranceContribution).Add(b.EmissionRight)
}

type InvoiceBreakdown struct {
	Breakdown
	Withholding          decimal.Decimal `json:"withholding"`
	EarlyPaymentDiscount decimal.Decimal `json:"early_payment_discount"`
	Total                decimal.Decimal `json:"total"`
}

// Compute derives the policy fiscal fields from premium.
func Compute(premium decimal.Decimal, tiers EmissionTable) Breakdown {
	premium = money.Round2(premium)
	b := Breakdown{
		Premium:                     premium,
		SuperintendenceContribution: money.Rate(premium, SuperintendenceRate),
		FarmInsuranceContribution:   money.Rate(premium, FarmInsuranceRate),
		EmissionRight:               tiers.Lookup(premium),
	}
	b.TaxBase = b.Contributions()
	b.VAT = money.Rate(b.TaxBase, VATRate)
	return b
}

// ComputeInvoice adds withholding and the early payment discount.
func ComputeInvoice(premium decimal.Decimal, tiers EmissionTable, retentions []Retention, invoiceDate, dueDate time.Time) InvoiceBreakdown {
	b := Compute(premium, tiers)
	out := InvoiceBreakdown{
		Breakdown:            b,
		Withholding:          Withholding(b, retentions),
		EarlyPaymentDiscount: EarlyPaymentDiscount(b.TaxBase, invoiceDate, dueDate),
	}
	out.Total = b.TaxBase.Add(b.VAT).Sub(out.EarlyPaymentDiscount).Sub(out.Withholding)
	return out
}

func EarlyPaymentDiscount(taxBase decimal.Decimal, invoiceDate, dueDate time.Time) decimal.Decimal {
	if clock.DaysBetween(invoiceDate, dueDate) <= EarlyPaymentDays {
		return money.Rate(taxBase, EarlyPaymentRate)
	}
	return money.Zero
}
