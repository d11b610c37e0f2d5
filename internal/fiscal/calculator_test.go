package fiscal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return money.MustParse(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s: want %s got %s", field, want, got.StringFixed(2))
}

func defaultTable(t *testing.T) EmissionTable {
	table, err := NewEmissionTable([]Tier{
		{Min: d("0"), Max: d("250"), Fee: d("0.50")},
		{Min: d("250.01"), Max: d("500"), Fee: d("1.00")},
		{Min: d("500.01"), Max: d("10000"), Fee: d("10.00")},
		{Min: d("10000.01"), Max: d("99999999"), Fee: d("20.00")},
	})
	require.NoError(t, err)
	return table
}

func TestComputeThousandPremium(t *testing.T) {
	table, err := NewEmissionTable([]Tier{{Min: d("0"), Max: d("10000"), Fee: d("10.00")}})
	require.NoError(t, err)

	b := Compute(d("1000.00"), table)
	assertMoney(t, "35.00", b.SuperintendenceContribution, "superintendence")
	assertMoney(t, "5.00", b.FarmInsuranceContribution, "farm")
	assertMoney(t, "10.00", b.EmissionRight, "emission")
	assertMoney(t, "1050.00", b.TaxBase, "tax_base")
	assertMoney(t, "157.50", b.VAT, "vat")
	assertMoney(t, "1207.50", b.Total(), "total")
}

func TestComputeHoldsFormulaForManyPremiums(t *testing.T) {
	table := defaultTable(t)
	for _, p := range []string{"0", "0.01", "99.99", "250", "250.01", "333.33", "9999.99", "10000.01", "123456.78"} {
		premium := d(p)
		b := Compute(premium, table)
		expectedBase := premium.Add(money.Rate(premium, SuperintendenceRate)).
			Add(money.Rate(premium, FarmInsuranceRate)).
			Add(table.Lookup(premium))
		assertMoney(t, expectedBase.String(), b.TaxBase, "tax_base "+p)
		assertMoney(t, b.TaxBase.Mul(VATRate).Round(2).String(), b.VAT, "vat "+p)
	}
}

func TestEmissionLookupBoundaries(t *testing.T) {
	table := defaultTable(t)
	assertMoney(t, "0.50", table.Lookup(d("250")), "upper bound inclusive")
	assertMoney(t, "1.00", table.Lookup(d("250.01")), "next tier")
	assertMoney(t, "0", table.Lookup(d("100000000")), "no tier")
	assertMoney(t, "0", EmissionTable{}.Lookup(d("10")), "empty table")
}

func TestNewEmissionTableRejectsOverlap(t *testing.T) {
	_, err := NewEmissionTable([]Tier{
		{Min: d("0"), Max: d("500"), Fee: d("1")},
		{Min: d("500"), Max: d("1000"), Fee: d("2")},
	})
	assert.ErrorIs(t, err, ErrOverlappingTiers)

	_, err = NewEmissionTable([]Tier{{Min: d("10"), Max: d("5"), Fee: d("1")}})
	assert.ErrorIs(t, err, ErrInvalidTierRange)
}

func TestComputeInvoice(t *testing.T) {
	table, err := NewEmissionTable([]Tier{{Min: d("0"), Max: d("10000"), Fee: d("10.00")}})
	require.NoError(t, err)
	invoiceDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("early payment discount and retentions", func(t *testing.T) {
		retentions := []Retention{
			{Percentage: d("1"), AppliesToPremium: true},
			{Percentage: d("2"), AppliesToTotal: true},
		}
		inv := ComputeInvoice(d("1000"), table, retentions, invoiceDate, invoiceDate.AddDate(0, 0, 20))

		assertMoney(t, "52.50", inv.EarlyPaymentDiscount, "discount")
		// 1% of 1000 plus 2% of 1050
		assertMoney(t, "31.00", inv.Withholding, "withholding")
		assertMoney(t, "1124.00", inv.Total, "total")
	})

	t.Run("no discount past twenty days", func(t *testing.T) {
		inv := ComputeInvoice(d("1000"), table, nil, invoiceDate, invoiceDate.AddDate(0, 0, 21))
		assertMoney(t, "0", inv.EarlyPaymentDiscount, "discount")
		assertMoney(t, "0", inv.Withholding, "withholding")
		assertMoney(t, "1207.50", inv.Total, "total")
	})

	t.Run("retention applying to both bases", func(t *testing.T) {
		retentions := []Retention{{Percentage: d("10"), AppliesToPremium: true, AppliesToTotal: true}}
		inv := ComputeInvoice(d("1000"), table, retentions, invoiceDate, invoiceDate.AddDate(0, 1, 0))
		assertMoney(t, "205.00", inv.Withholding, "withholding")
	})
}
