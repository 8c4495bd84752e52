package pricing

// Options tune the engine. Zero values fall back to DefaultOptions.
type Options struct {
	YearWindow            int                `mapstructure:"year_window"`
	MileageBandPct        float64            `mapstructure:"mileage_band_pct"`
	MileageFloorKm        int                `mapstructure:"mileage_floor_km"`
	MinSample             int                `mapstructure:"min_sample"`
	MaxSample             int                `mapstructure:"max_sample"`
	MaxWidenSteps         int                `mapstructure:"max_widen_steps"`
	WidenYearStep         int                `mapstructure:"widen_year_step"`
	WidenMileageStep      float64            `mapstructure:"widen_mileage_step"`
	RecencyHalfLifeDays   float64            `mapstructure:"recency_half_life_days"`
	NormalizeSpecPremiums bool               `mapstructure:"normalize_spec_premiums"`
	BandSigma             float64            `mapstructure:"band_sigma"`
	SingleCompSpreadPct   float64            `mapstructure:"single_comp_spread_pct"`
	FallbackSpreadPct     float64            `mapstructure:"fallback_spread_pct"`
	HighDemandCount       int                `mapstructure:"high_demand_count"`
	Saleability           SaleabilityOptions `mapstructure:"saleability"`
}

// SaleabilityOptions weight the saleability score. Weights are clamped to be
// non-negative so the estimate stays monotonic in every input.
type SaleabilityOptions struct {
	Bias            float64 `mapstructure:"bias"`
	MileageWeight   float64 `mapstructure:"mileage_weight"`
	AgeWeight       float64 `mapstructure:"age_weight"`
	EquipmentWeight float64 `mapstructure:"equipment_weight"`
	DemandWeight    float64 `mapstructure:"demand_weight"`
	HorizonShift    float64 `mapstructure:"horizon_shift"`
	MileageScaleKm  float64 `mapstructure:"mileage_scale_km"`
	AgeScaleYears   float64 `mapstructure:"age_scale_years"`
	EquipmentScale  float64 `mapstructure:"equipment_scale"`
	DemandScale     float64 `mapstructure:"demand_scale"`
}

// DefaultOptions returns the deterministic engine defaults.
func DefaultOptions() Options {
	return Options{
		YearWindow:            2,
		MileageBandPct:        0.30,
		MileageFloorKm:        20000,
		MinSample:             3,
		MaxSample:             25,
		MaxWidenSteps:         3,
		WidenYearStep:         1,
		WidenMileageStep:      0.25,
		RecencyHalfLifeDays:   30,
		NormalizeSpecPremiums: true,
		BandSigma:             1.2816,
		SingleCompSpreadPct:   0.05,
		FallbackSpreadPct:     0.05,
		HighDemandCount:       10,
		Saleability:           DefaultSaleabilityOptions(),
	}
}

// DefaultSaleabilityOptions returns the default saleability weights.
func DefaultSaleabilityOptions() SaleabilityOptions {
	return SaleabilityOptions{
		Bias:            -2.5,
		MileageWeight:   1.2,
		AgeWeight:       1.2,
		EquipmentWeight: 0.6,
		DemandWeight:    2.0,
		HorizonShift:    0.9,
		MileageScaleKm:  250000,
		AgeScaleYears:   15,
		EquipmentScale:  20,
		DemandScale:     20,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.YearWindow <= 0 {
		o.YearWindow = def.YearWindow
	}
	if o.MileageBandPct <= 0 {
		o.MileageBandPct = def.MileageBandPct
	}
	if o.MileageFloorKm <= 0 {
		o.MileageFloorKm = def.MileageFloorKm
	}
	if o.MinSample <= 0 {
		o.MinSample = def.MinSample
	}
	if o.MaxSample <= 0 {
		o.MaxSample = def.MaxSample
	}
	if o.MaxSample < o.MinSample {
		o.MaxSample = o.MinSample
	}
	if o.MaxWidenSteps < 0 {
		o.MaxWidenSteps = 0
	}
	if o.WidenYearStep < 0 {
		o.WidenYearStep = 0
	}
	if o.WidenMileageStep < 0 {
		o.WidenMileageStep = 0
	}
	if o.RecencyHalfLifeDays <= 0 {
		o.RecencyHalfLifeDays = def.RecencyHalfLifeDays
	}
	if o.BandSigma <= 0 {
		o.BandSigma = def.BandSigma
	}
	if o.SingleCompSpreadPct <= 0 || o.SingleCompSpreadPct >= 1 {
		o.SingleCompSpreadPct = def.SingleCompSpreadPct
	}
	if o.FallbackSpreadPct <= 0 || o.FallbackSpreadPct >= 1 {
		o.FallbackSpreadPct = def.FallbackSpreadPct
	}
	if o.HighDemandCount <= 0 {
		o.HighDemandCount = def.HighDemandCount
	}
	o.Saleability = o.Saleability.withDefaults()
	return o
}

func (o SaleabilityOptions) withDefaults() SaleabilityOptions {
	def := DefaultSaleabilityOptions()
	if o == (SaleabilityOptions{}) {
		return def
	}
	o.MileageWeight = nonNegative(o.MileageWeight)
	o.AgeWeight = nonNegative(o.AgeWeight)
	o.EquipmentWeight = nonNegative(o.EquipmentWeight)
	o.DemandWeight = nonNegative(o.DemandWeight)
	o.HorizonShift = nonNegative(o.HorizonShift)
	if o.MileageScaleKm <= 0 {
		o.MileageScaleKm = def.MileageScaleKm
	}
	if o.AgeScaleYears <= 0 {
		o.AgeScaleYears = def.AgeScaleYears
	}
	if o.EquipmentScale <= 0 {
		o.EquipmentScale = def.EquipmentScale
	}
	if o.DemandScale <= 0 {
		o.DemandScale = def.DemandScale
	}
	return o
}
