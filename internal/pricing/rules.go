package pricing

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

const (
	tierCount       = 3
	maxGrossPct     = 0.95
	maxTierDiscount = 0.95
)

// AgingTier discounts a price once its age reaches Days.
type AgingTier struct {
	Days     int     `json:"days"`
	Discount float64 `json:"discount"`
}

// PricingRules are the per-tenant tunables consumed by the aging model and
// the assembler. Callers load them per tenant and pass them explicitly.
type PricingRules struct {
	TenantID         uuid.UUID            `json:"tenant_id"`
	TargetGrossPct   float64              `json:"target_gross_pct"`
	MinGrossPct      float64              `json:"min_gross_pct"`
	Tiers            [tierCount]AgingTier `json:"aging_tiers"`
	HighRatingCutoff float64              `json:"high_rating_cutoff"`
	LowRatingCutoff  float64              `json:"low_rating_cutoff"`
}

// DefaultPricingRules returns the rules a new tenant starts with.
func DefaultPricingRules(tenantID uuid.UUID) PricingRules {
	return PricingRules{
		TenantID:       tenantID,
		TargetGrossPct: 0.12,
		MinGrossPct:    0.06,
		Tiers: [tierCount]AgingTier{
			{Days: 30, Discount: 0.015},
			{Days: 45, Discount: 0.03},
			{Days: 60, Discount: 0.05},
		},
		HighRatingCutoff: 0.70,
		LowRatingCutoff:  0.40,
	}
}

// Validate rejects rules a tenant admin should not be able to save.
func (r PricingRules) Validate() error {
	if !inRange(r.TargetGrossPct, 0, maxGrossPct) {
		return rulesError("target_gross_pct", fmt.Sprintf("must be within [0, %.2f]", maxGrossPct))
	}
	if !inRange(r.MinGrossPct, 0, maxGrossPct) {
		return rulesError("min_gross_pct", fmt.Sprintf("must be within [0, %.2f]", maxGrossPct))
	}
	if r.MinGrossPct > r.TargetGrossPct {
		return rulesError("min_gross_pct", "must not exceed target_gross_pct")
	}
	for i, t := range r.Tiers {
		if t.Days < 0 {
			return rulesError(fmt.Sprintf("aging_tiers[%d].days", i), "must not be negative")
		}
		if !inRange(t.Discount, 0, maxTierDiscount) {
			return rulesError(fmt.Sprintf("aging_tiers[%d].discount", i), fmt.Sprintf("must be within [0, %.2f]", maxTierDiscount))
		}
		if i == 0 {
			continue
		}
		prev := r.Tiers[i-1]
		if t.Days <= prev.Days {
			return rulesError(fmt.Sprintf("aging_tiers[%d].days", i), "thresholds must be strictly increasing")
		}
		if t.Discount < prev.Discount {
			return rulesError(fmt.Sprintf("aging_tiers[%d].discount", i), "discounts must not decrease")
		}
	}
	if !inRange(r.HighRatingCutoff, 0, 1) || !inRange(r.LowRatingCutoff, 0, 1) {
		return rulesError("rating_cutoffs", "must be within [0, 1]")
	}
	if r.LowRatingCutoff > r.HighRatingCutoff {
		return rulesError("low_rating_cutoff", "must not exceed high_rating_cutoff")
	}
	return nil
}

// Normalize repairs malformed rules instead of failing: tiers are sorted,
// thresholds forced strictly increasing, discounts clamped to [0,0.95] and made
// non-decreasing, margins and cutoffs clamped. The boolean reports whether
// anything was repaired.
func (r PricingRules) Normalize() (PricingRules, bool) {
	// Absent rating cutoffs take the defaults without counting as a repair.
	if r.HighRatingCutoff == 0 && r.LowRatingCutoff == 0 {
		def := DefaultPricingRules(r.TenantID)
		r.HighRatingCutoff = def.HighRatingCutoff
		r.LowRatingCutoff = def.LowRatingCutoff
	}
	out := r

	tiers, _ := normalizeTiers(r.Tiers)
	out.Tiers = tiers

	out.MinGrossPct = clampRange(out.MinGrossPct, 0, maxGrossPct)
	out.TargetGrossPct = clampRange(out.TargetGrossPct, 0, maxGrossPct)
	if out.TargetGrossPct < out.MinGrossPct {
		out.TargetGrossPct = out.MinGrossPct
	}

	out.HighRatingCutoff = clamp01(out.HighRatingCutoff)
	out.LowRatingCutoff = clamp01(out.LowRatingCutoff)
	if out.LowRatingCutoff > out.HighRatingCutoff {
		out.LowRatingCutoff, out.HighRatingCutoff = out.HighRatingCutoff, out.LowRatingCutoff
	}

	return out, out != r
}

func normalizeTiers(in [tierCount]AgingTier) ([tierCount]AgingTier, bool) {
	tiers := in
	for i := range tiers {
		if tiers[i].Days < 0 {
			tiers[i].Days = 0
		}
		tiers[i].Discount = clampRange(tiers[i].Discount, 0, maxTierDiscount)
	}

	sorted := tiers[:]
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Days != sorted[j].Days {
			return sorted[i].Days < sorted[j].Days
		}
		return sorted[i].Discount < sorted[j].Discount
	})

	for i := 1; i < tierCount; i++ {
		if tiers[i].Days <= tiers[i-1].Days {
			tiers[i].Days = tiers[i-1].Days + 1
		}
		if tiers[i].Discount < tiers[i-1].Discount {
			tiers[i].Discount = tiers[i-1].Discount
		}
	}
	return tiers, tiers != in
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}
