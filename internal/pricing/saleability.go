package pricing

import "math"

// SaleabilityInput are the signals the estimator scores.
type SaleabilityInput struct {
	MileageKm       int
	VehicleAgeYears int
	EquipmentScore  int
	SampleSize      int
}

// EstimateSaleability scores the inputs with a bounded weighted sum and
// squashes it into a 14-day probability. The 30-day probability shifts the same
// score by a non-negative horizon term, so it is never below the 14-day one.
func EstimateSaleability(in SaleabilityInput, rules PricingRules, opts SaleabilityOptions) Saleability {
	opts = opts.withDefaults()

	mileage := clamp01(1 - float64(maxInt(in.MileageKm, 0))/opts.MileageScaleKm)
	age := clamp01(1 - float64(maxInt(in.VehicleAgeYears, 0))/opts.AgeScaleYears)
	equipment := clamp01(float64(maxInt(in.EquipmentScore, 0)) / opts.EquipmentScale)
	demand := clamp01(float64(maxInt(in.SampleSize, 0)) / opts.DemandScale)

	score := opts.Bias +
		opts.MileageWeight*mileage +
		opts.AgeWeight*age +
		opts.EquipmentWeight*equipment +
		opts.DemandWeight*demand

	p14 := roundTo(logistic(score), 4)
	p30 := roundTo(logistic(score+opts.HorizonShift), 4)
	p30 = math.Max(p30, p14)

	return Saleability{
		Prob14: p14,
		Prob30: p30,
		Rating: rate(p30, rules),
	}
}

func rate(p float64, rules PricingRules) Rating {
	switch {
	case p >= rules.HighRatingCutoff:
		return RatingHigh
	case p <= rules.LowRatingCutoff:
		return RatingLow
	default:
		return RatingMedium
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
