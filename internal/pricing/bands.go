package pricing

import "math"

// MarketStats is the central tendency and spread of a decayed comparable sample.
type MarketStats struct {
	Anchor        float64
	RelDispersion float64
	Collapsed     bool
}

type priceBand struct {
	low, mid, high float64
}

// DecayedPrices applies each candidate's listing-age discount.
func DecayedPrices(candidates []Candidate, rules PricingRules) (prices, weights, discounts []float64) {
	prices = make([]float64, len(candidates))
	weights = make([]float64, len(candidates))
	discounts = make([]float64, len(candidates))
	for i, c := range candidates {
		discounts[i] = DiscountFor(c.AgeDays, rules)
		prices[i] = Decay(c.NormalizedPrice, c.AgeDays, rules)
		weights[i] = c.Weight
	}
	return prices, weights, discounts
}

// hasUsablePrices reports whether the decayed sample can anchor a market
// price at all.
func hasUsablePrices(candidates []Candidate, rules PricingRules) bool {
	prices, weights, _ := DecayedPrices(candidates, rules)
	return ComputeMarketStats(prices, weights).Anchor > 0
}

// ComputeMarketStats derives the weighted-median anchor and the weighted
// standard deviation relative to it. A single comparable, or a sample with no
// spread at all, is reported as collapsed.
func ComputeMarketStats(prices, weights []float64) MarketStats {
	anchor := weightedMedian(prices, weights)
	if anchor <= 0 {
		return MarketStats{}
	}
	positive := 0
	for _, w := range weights {
		if w > 0 {
			positive++
		}
	}
	sd := weightedStdDev(prices, weights, anchor)
	stats := MarketStats{Anchor: anchor, RelDispersion: sd / anchor}
	if positive < 2 || sd == 0 {
		stats.Collapsed = true
		stats.RelDispersion = 0
	}
	return stats
}

// bandAround spreads low and high around mid. Collapsed samples use the fixed
// spread instead of the measured dispersion.
func bandAround(mid float64, stats MarketStats, opts Options) priceBand {
	offsetPct := stats.RelDispersion * opts.BandSigma
	if stats.Collapsed {
		offsetPct = opts.SingleCompSpreadPct
	}
	return spreadBand(mid, offsetPct)
}

func spreadBand(mid, pct float64) priceBand {
	offset := mid * pct
	return priceBand{
		low:  math.Max(0, mid-offset),
		mid:  mid,
		high: mid + offset,
	}
}
