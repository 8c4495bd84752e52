package pricing

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Reason codes attached to suggestions.
const (
	ReasonRulesAdjusted      = "rules_adjusted"
	ReasonCostPlusFallback   = "cost_plus_fallback"
	ReasonSearchWidened      = "search_widened"
	ReasonLimitedComparables = "limited_comparables"
	ReasonSingleComparable   = "single_comparable"
	ReasonVehicleAging       = "vehicle_aging"
	ReasonMinMarginGuardrail = "min_margin_guardrail"
	ReasonBelowTargetMargin  = "below_target_margin"
	ReasonHighDemand         = "high_demand"
	ReasonLowDemand          = "low_demand"
)

const marginTolerance = 1e-9

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func profileValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Request is a frozen input snapshot for one recommendation.
type Request struct {
	Vehicle     VehicleProfile
	Comparables []ComparableListing
	Rules       PricingRules
	AsOf        time.Time
}

// Engine assembles price suggestions. It holds only immutable options and is
// safe for concurrent use.
type Engine struct {
	opts Options
}

// NewEngine builds an engine; zero option fields take their defaults.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Suggest computes a price suggestion. Identical requests yield identical
// suggestions.
func (e *Engine) Suggest(req Request) (Suggestion, error) {
	if err := ValidateProfile(req.Vehicle); err != nil {
		return Suggestion{}, err
	}
	if req.AsOf.IsZero() {
		return Suggestion{}, vehicleError("as_of", "is required")
	}

	rules, adjusted := req.Rules.Normalize()
	filtered := FilterComparables(req.Vehicle, req.Comparables, req.AsOf, e.opts)

	var reasons []Reason
	if adjusted {
		reasons = append(reasons, Reason{
			Code:    ReasonRulesAdjusted,
			Message: "Pricing rules were malformed and have been normalized",
		})
	}

	var (
		s   Suggestion
		err error
	)
	switch {
	case filtered.Insufficient:
		s, err = e.costPlus(req.Vehicle, rules, "No comparable vehicles found", &reasons)
	case !hasUsablePrices(filtered.Candidates, rules):
		s, err = e.costPlus(req.Vehicle, rules, "No comparable vehicle has a usable aged price", &reasons)
	default:
		s, err = e.marketBased(req.Vehicle, filtered, rules, &reasons)
	}
	if err != nil {
		return Suggestion{}, err
	}

	s.VehicleID = req.Vehicle.ID
	s.TenantID = req.Vehicle.TenantID
	s.AsOf = req.AsOf

	s.Saleability = EstimateSaleability(SaleabilityInput{
		MileageKm:       req.Vehicle.MileageKm,
		VehicleAgeYears: req.AsOf.Year() - req.Vehicle.ModelYear,
		EquipmentScore:  req.Vehicle.EquipmentScore,
		SampleSize:      len(s.SampleComps),
	}, rules, e.opts.Saleability)

	n := len(s.SampleComps)
	switch {
	case n >= e.opts.HighDemandCount:
		reasons = append(reasons, Reason{
			Code:    ReasonHighDemand,
			Message: fmt.Sprintf("High demand: %d comparable vehicles on the market", n),
		})
	case s.Saleability.Rating == RatingLow:
		reasons = append(reasons, Reason{
			Code:    ReasonLowDemand,
			Message: fmt.Sprintf("Low demand: %.0f%% chance of sale within 30 days", s.Saleability.Prob30*100),
		})
	}
	s.Reasons = reasons

	if err := e.checkInvariants(req, rules, s); err != nil {
		return Suggestion{}, err
	}
	return s, nil
}

func (e *Engine) marketBased(v VehicleProfile, filtered FilterResult, rules PricingRules, reasons *[]Reason) (Suggestion, error) {
	cost, err := requireCost(v, rules.MinGrossPct > 0)
	if err != nil {
		return Suggestion{}, err
	}

	prices, weights, discounts := DecayedPrices(filtered.Candidates, rules)
	stats := ComputeMarketStats(prices, weights)
	if stats.Anchor <= 0 {
		return Suggestion{}, invariantError("market anchor %.2f is not positive", stats.Anchor)
	}

	agingApplied := Decay(stats.Anchor, v.DaysOnLot, rules)
	band := bandAround(agingApplied, stats, e.opts)
	bands := roundBands(band)

	if filtered.WidenSteps > 0 {
		*reasons = append(*reasons, Reason{
			Code:    ReasonSearchWidened,
			Message: fmt.Sprintf("Limited comparable data: search widened %d step(s)", filtered.WidenSteps),
		})
	}
	n := len(filtered.Candidates)
	switch {
	case stats.Collapsed && n == 1:
		*reasons = append(*reasons, Reason{
			Code:    ReasonSingleComparable,
			Message: fmt.Sprintf("Only one comparable vehicle found: estimate widened to ±%.0f%%", e.opts.SingleCompSpreadPct*100),
		})
	case n < e.opts.MinSample:
		*reasons = append(*reasons, Reason{
			Code:    ReasonLimitedComparables,
			Message: fmt.Sprintf("Limited comparable data: %d comparable vehicles, estimate widened", n),
		})
	}
	if d := DiscountFor(v.DaysOnLot, rules); d > 0 {
		*reasons = append(*reasons, Reason{
			Code:    ReasonVehicleAging,
			Message: fmt.Sprintf("Vehicle has been %d days on lot: anchor reduced by %.1f%%", v.DaysOnLot, d*100),
		})
	}
	if cost.Valid {
		bands = applyMarginGuardrail(bands, cost.Decimal, rules, reasons)
	}

	sample := make([]SampleComp, 0, n)
	for i, c := range filtered.Candidates {
		sample = append(sample, SampleComp{
			ListingID:     c.Listing.ID,
			Source:        c.Listing.Source,
			RegNr:         c.Listing.RegNr,
			ModelYear:     c.Listing.ModelYear,
			MileageKm:     c.Listing.MileageKm,
			Location:      c.Listing.Location,
			ListedAt:      c.Listing.ListedAt,
			AgeDays:       c.AgeDays,
			Price:         c.Listing.Price,
			AdjustedPrice: decimal.NewFromFloat(prices[i]).Round(0),
			Discount:      discounts[i],
			Weight:        c.Weight,
			Features:      c.Features,
		})
	}

	return Suggestion{
		Status: StatusMarketBased,
		Market: &MarketBasis{
			MarketAnchor:       decimal.NewFromFloat(stats.Anchor).Round(0),
			AgingAppliedAnchor: decimal.NewFromFloat(agingApplied).Round(0),
			Dispersion:         roundTo(stats.RelDispersion, 6),
			SampleSize:         n,
			Considered:         filtered.Considered,
			WidenSteps:         filtered.WidenSteps,
		},
		Bands:       bands,
		SampleComps: sample,
	}, nil
}

func (e *Engine) costPlus(v VehicleProfile, rules PricingRules, cause string, reasons *[]Reason) (Suggestion, error) {
	cost, err := requireCost(v, true)
	if err != nil {
		return Suggestion{}, err
	}

	margin := rules.TargetGrossPct
	if rules.MinGrossPct > margin {
		margin = rules.MinGrossPct
	}
	mid := marginFloor(cost.Decimal, margin)
	band := spreadBand(mid.InexactFloat64(), e.opts.FallbackSpreadPct)
	bands := Bands{
		Low:  decimal.NewFromFloat(band.low).Round(0),
		Mid:  mid,
		High: decimal.NewFromFloat(band.high).Round(0),
	}
	bands = orderBands(bands)

	*reasons = append(*reasons, Reason{
		Code:    ReasonCostPlusFallback,
		Message: fmt.Sprintf("%s: priced at cost plus %.1f%% target margin", cause, margin*100),
	})

	return Suggestion{
		Status:      StatusCostPlusFallback,
		CostPlus:    &CostPlusBasis{CostBasis: cost.Decimal, MarginPct: margin},
		Bands:       bands,
		SampleComps: []SampleComp{},
	}, nil
}

// applyMarginGuardrail raises the band when mid would imply a gross margin
// below the tenant minimum.
func applyMarginGuardrail(b Bands, cost decimal.Decimal, rules PricingRules, reasons *[]Reason) Bands {
	if rules.MinGrossPct > 0 {
		floor := marginFloor(cost, rules.MinGrossPct)
		if b.Mid.LessThan(floor) {
			delta := floor.Sub(b.Mid)
			b = Bands{Low: b.Low.Add(delta), Mid: floor, High: b.High.Add(delta)}
			*reasons = append(*reasons, Reason{
				Code:    ReasonMinMarginGuardrail,
				Message: fmt.Sprintf("Price raised to meet minimum margin of %.1f%%", rules.MinGrossPct*100),
			})
			return b
		}
	}
	if margin, ok := GrossMargin(b.Mid, cost); ok && margin < rules.TargetGrossPct {
		*reasons = append(*reasons, Reason{
			Code:    ReasonBelowTargetMargin,
			Message: fmt.Sprintf("Market price gives %.1f%% margin, below the %.1f%% target", margin*100, rules.TargetGrossPct*100),
		})
	}
	return b
}

// GrossMargin returns (price - cost) / price. It reports false for a
// non-positive price.
func GrossMargin(price, cost decimal.Decimal) (float64, bool) {
	if !price.IsPositive() {
		return 0, false
	}
	return price.Sub(cost).Div(price).InexactFloat64(), true
}

// marginFloor is the smallest whole-unit price whose gross margin over cost is
// at least pct.
func marginFloor(cost decimal.Decimal, pct float64) decimal.Decimal {
	divisor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(pct))
	return cost.Div(divisor).RoundCeil(0)
}

func requireCost(v VehicleProfile, needed bool) (decimal.NullDecimal, error) {
	if !v.CostBasis.Valid {
		if needed {
			return decimal.NullDecimal{}, vehicleError("cost_basis", "is required to honor the margin guardrail")
		}
		return decimal.NullDecimal{}, nil
	}
	if !v.CostBasis.Decimal.IsPositive() {
		return decimal.NullDecimal{}, vehicleError("cost_basis", "must be greater than zero")
	}
	return v.CostBasis, nil
}

func roundBands(b priceBand) Bands {
	return orderBands(Bands{
		Low:  decimal.NewFromFloat(b.low).Round(0),
		Mid:  decimal.NewFromFloat(b.mid).Round(0),
		High: decimal.NewFromFloat(b.high).Round(0),
	})
}

func orderBands(b Bands) Bands {
	if b.Low.IsNegative() {
		b.Low = decimal.Zero
	}
	if b.Low.GreaterThan(b.Mid) {
		b.Low = b.Mid
	}
	if b.High.LessThan(b.Mid) {
		b.High = b.Mid
	}
	return b
}

// ValidateProfile checks the fields the engine cannot work without.
func ValidateProfile(v VehicleProfile) error {
	if err := profileValidator().Struct(v); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			return vehicleError(fe.Field(), "failed "+fe.Tag()+" check")
		}
		return vehicleError("vehicle", err.Error())
	}
	if strings.TrimSpace(v.Make) == "" {
		return vehicleError("make", "failed required check")
	}
	if strings.TrimSpace(v.Model) == "" {
		return vehicleError("model", "failed required check")
	}
	if v.AskingPrice.IsNegative() {
		return vehicleError("asking_price", "must not be negative")
	}
	return nil
}

func (e *Engine) checkInvariants(req Request, rules PricingRules, s Suggestion) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if len(s.SampleComps) > len(req.Comparables) || len(s.SampleComps) > e.opts.MaxSample {
		return invariantError("sample of %d exceeds input of %d", len(s.SampleComps), len(req.Comparables))
	}
	seen := make(map[int64]int, len(req.Comparables))
	for _, c := range req.Comparables {
		seen[c.ID]++
	}
	for _, c := range s.SampleComps {
		if seen[c.ListingID] == 0 {
			return invariantError("sample listing %d not in input", c.ListingID)
		}
		seen[c.ListingID]--
	}
	if req.Vehicle.CostBasis.Valid && rules.MinGrossPct > 0 {
		margin, ok := GrossMargin(s.Bands.Mid, req.Vehicle.CostBasis.Decimal)
		if !ok || margin+marginTolerance < rules.MinGrossPct {
			return invariantError("mid %s implies margin below %.4f", s.Bands.Mid, rules.MinGrossPct)
		}
	}
	return nil
}

// Validate checks the output invariants of a suggestion.
func (s Suggestion) Validate() error {
	switch s.Status {
	case StatusMarketBased:
		if s.Market == nil || s.CostPlus != nil {
			return invariantError("market-based suggestion must carry only a market basis")
		}
	case StatusCostPlusFallback:
		if s.CostPlus == nil || s.Market != nil {
			return invariantError("cost-plus suggestion must carry only a cost-plus basis")
		}
	default:
		return invariantError("unknown status %q", s.Status)
	}

	b := s.Bands
	if s.Status == StatusMarketBased && !b.Mid.IsPositive() {
		return invariantError("market-based mid %s is not positive", b.Mid)
	}
	if b.Low.IsNegative() {
		return invariantError("low band %s is negative", b.Low)
	}
	if b.Low.GreaterThan(b.Mid) || b.Mid.GreaterThan(b.High) {
		return invariantError("bands out of order: %s/%s/%s", b.Low, b.Mid, b.High)
	}
	p := s.Saleability
	if !inRange(p.Prob14, 0, 1) || !inRange(p.Prob30, 0, 1) {
		return invariantError("probabilities out of range: %.4f/%.4f", p.Prob14, p.Prob30)
	}
	if p.Prob30 < p.Prob14 {
		return invariantError("30-day probability %.4f below 14-day %.4f", p.Prob30, p.Prob14)
	}
	switch p.Rating {
	case RatingHigh, RatingMedium, RatingLow:
	default:
		return invariantError("unknown rating %q", p.Rating)
	}
	return nil
}
