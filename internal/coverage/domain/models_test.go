package domain

import (
	"testing"

	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"github.com/stretchr/testify/assert"
)

func TestResolveDeductible(t *testing.T) {
	c := Coverage{
		DeductibleFixed:      money.MustParse("200"),
		DeductiblePercentage: money.MustParse("10"),
	}

	t.Run("fixed dominates small losses", func(t *testing.T) {
		assert.Equal(t, "200", ResolveDeductible(c, money.MustParse("1500")).String())
	})

	t.Run("percentage dominates large losses", func(t *testing.T) {
		assert.Equal(t, "500", ResolveDeductible(c, money.MustParse("5000")).String())
	})

	t.Run("monotonic once percentage dominates", func(t *testing.T) {
		prev := ResolveDeductible(c, money.MustParse("2000"))
		for _, loss := range []string{"2000.01", "2500", "10000", "250000.55"} {
			cur := ResolveDeductible(c, money.MustParse(loss))
			assert.True(t, cur.GreaterThanOrEqual(prev), "loss %s", loss)
			prev = cur
		}
	})

	t.Run("zero percentage", func(t *testing.T) {
		fixedOnly := Coverage{DeductibleFixed: money.MustParse("50")}
		assert.Equal(t, "50", ResolveDeductible(fixedOnly, money.MustParse("99999")).String())
	})
}

func TestCoverageValidate(t *testing.T) {
	err := Coverage{
		PolicyID:             1,
		Name:                 "Fire",
		InsuredLimit:         money.Zero,
		DeductiblePercentage: money.MustParse("120"),
	}.Validate()

	var verr *apperror.ValidationError
	if assert.ErrorAs(t, err, &verr) {
		assert.True(t, verr.Has("insured_limit"))
		assert.True(t, verr.Has("deductible_percentage"))
	}

	assert.NoError(t, Coverage{
		PolicyID:             1,
		Name:                 "Fire",
		InsuredLimit:         money.MustParse("10000"),
		DeductiblePercentage: money.MustParse("100"),
	}.Validate())
}
