package pricing

import (
	"math"
	"time"
)

// DiscountFor returns the discount of the highest tier whose threshold ageDays
// meets or exceeds. Tiers are not cumulative.
func DiscountFor(ageDays int, rules PricingRules) float64 {
	tiers, _ := normalizeTiers(rules.Tiers)
	discount := 0.0
	for _, t := range tiers {
		if ageDays >= t.Days {
			discount = t.Discount
		}
	}
	return clampRange(discount, 0, maxTierDiscount)
}

// Decay applies the aging discount for ageDays to price. A positive price
// stays positive and never grows.
func Decay(price float64, ageDays int, rules PricingRules) float64 {
	if math.IsNaN(price) || price <= 0 {
		return 0
	}
	return price * (1 - DiscountFor(ageDays, rules))
}

// AgeInDays counts whole days between since and asOf, never negative.
func AgeInDays(since, asOf time.Time) int {
	if since.IsZero() || !asOf.After(since) {
		return 0
	}
	return int(asOf.Sub(since).Hours() / 24)
}
