package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecayAppliesOnlyHighestTier(t *testing.T) {
	rules := DefaultPricingRules(testTenant)

	assert.InDelta(t, 97000.0, Decay(100000, 50, rules), 1e-6, "45-day tier applies alone, not stacked on the 30-day tier")
	assert.InDelta(t, 98500.0, Decay(100000, 30, rules), 1e-6)
	assert.InDelta(t, 95000.0, Decay(100000, 400, rules), 1e-6)
}

func TestDecayBelowFirstThreshold(t *testing.T) {
	rules := DefaultPricingRules(testTenant)
	assert.Equal(t, 100000.0, Decay(100000, 0, rules))
	assert.Equal(t, 100000.0, Decay(100000, 29, rules))
	assert.Zero(t, DiscountFor(29, rules))
}

func TestDecayIsPureAndNeverIncreases(t *testing.T) {
	rules := DefaultPricingRules(testTenant)
	for age := 0; age <= 120; age += 7 {
		first := Decay(250000, age, rules)
		second := Decay(250000, age, rules)
		assert.Equal(t, first, second)
		assert.LessOrEqual(t, first, 250000.0)
		assert.GreaterOrEqual(t, first, 0.0)
	}
}

func TestDecayClampsMalformedRules(t *testing.T) {
	rules := PricingRules{Tiers: [3]AgingTier{
		{Days: 60, Discount: 1.7},
		{Days: 10, Discount: -0.2},
		{Days: 30, Discount: math.NaN()},
	}}

	assert.Equal(t, 100000.0, Decay(100000, 15, rules))
	assert.Equal(t, 100000.0, Decay(100000, 45, rules))
	assert.InDelta(t, 5000.0, Decay(100000, 90, rules), 1e-6, "discount clamps to 95% so a price never decays to zero")
}

func TestDecayRejectsNonPositivePrice(t *testing.T) {
	rules := DefaultPricingRules(testTenant)
	assert.Zero(t, Decay(-10, 50, rules))
	assert.Zero(t, Decay(math.NaN(), 50, rules))
}

func TestAgeInDays(t *testing.T) {
	assert.Equal(t, 50, AgeInDays(testAsOf.AddDate(0, 0, -50), testAsOf))
	assert.Equal(t, 0, AgeInDays(testAsOf.Add(time.Hour), testAsOf))
	assert.Equal(t, 0, AgeInDays(time.Time{}, testAsOf))
	assert.Equal(t, 0, AgeInDays(testAsOf.Add(-23*time.Hour), testAsOf))
}

func TestDecayFullDiscountTierKeepsPricePositive(t *testing.T) {
	rules := DefaultPricingRules(testTenant)
	rules.Tiers[2].Discount = 1

	assert.Equal(t, maxTierDiscount, DiscountFor(90, rules))
	assert.Greater(t, Decay(300000, 90, rules), 0.0)
}
