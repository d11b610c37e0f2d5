package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, "0.01", Round2(MustParse("0.005")).String())
	assert.Equal(t, "-0.01", Round2(MustParse("-0.005")).String())
	assert.Equal(t, "12.34", Round2(MustParse("12.3449")).String())
}

func TestPercentAndRate(t *testing.T) {
	assert.True(t, MustParse("35").Equal(Rate(MustParse("1000"), MustParse("0.035"))))
	assert.True(t, MustParse("2.5").Equal(Percent(MustParse("250"), MustParse("1"))))
}

func TestIsValidPercentage(t *testing.T) {
	assert.True(t, IsValidPercentage(Zero))
	assert.True(t, IsValidPercentage(Hundred))
	assert.False(t, IsValidPercentage(MustParse("100.01")))
	assert.False(t, IsValidPercentage(MustParse("-1")))
}
