package pricing

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestMarketBasedScenario(t *testing.T) {
	engine := NewEngine(DefaultOptions())
	req := Request{
		Vehicle:     testVehicle(),
		Comparables: listingsAt(298000, 299000, 300000, 301000, 302000),
		Rules:       DefaultPricingRules(testTenant),
		AsOf:        testAsOf,
	}

	s, err := engine.Suggest(req)
	require.NoError(t, err)

	assert.Equal(t, StatusMarketBased, s.Status)
	require.NotNil(t, s.Market)
	assert.Nil(t, s.CostPlus)
	assert.Equal(t, "300000", s.Market.MarketAnchor.String())
	assert.Equal(t, "300000", s.Market.AgingAppliedAnchor.String())
	assert.InDelta(t, 300000, s.Bands.Mid.InexactFloat64(), 1)
	assert.True(t, s.Bands.Low.LessThan(s.Bands.Mid))
	assert.True(t, s.Bands.High.GreaterThan(s.Bands.Mid))
	assert.Less(t, s.Bands.High.Sub(s.Bands.Low).InexactFloat64(), 300000*0.02)
	assert.Contains(t, []Rating{RatingHigh, RatingMedium}, s.Saleability.Rating)
	assert.Len(t, s.SampleComps, 5)
	assert.Equal(t, testVehicle().ID, s.VehicleID)
	assert.Equal(t, testAsOf, s.AsOf)
	assert.False(t, s.HasReason(ReasonMinMarginGuardrail))
}

func TestSuggestCostPlusFallback(t *testing.T) {
	v := testVehicle()
	v.CostBasis = decimal.NewNullDecimal(decimal.NewFromInt(200000))

	s, err := NewEngine(Options{}).Suggest(Request{
		Vehicle: v,
		Rules:   DefaultPricingRules(testTenant),
		AsOf:    testAsOf,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCostPlusFallback, s.Status)
	require.NotNil(t, s.CostPlus)
	assert.Nil(t, s.Market)
	assert.InDelta(t, 200000/(1-0.12), s.Bands.Mid.InexactFloat64(), 1)
	assert.True(t, s.HasReason(ReasonCostPlusFallback))
	assert.Equal(t, ReasonCostPlusFallback, s.Reasons[0].Code)
	assert.NotNil(t, s.SampleComps)
	assert.Empty(t, s.SampleComps)
	assert.True(t, s.Bands.Low.LessThan(s.Bands.Mid))
	assert.True(t, s.Bands.High.GreaterThan(s.Bands.Mid))
}

func TestSuggestMissingCostBasisIsValidationError(t *testing.T) {
	v := testVehicle()
	v.CostBasis = decimal.NullDecimal{}

	_, err := NewEngine(Options{}).Suggest(Request{
		Vehicle:     v,
		Comparables: listingsAt(300000, 301000, 302000),
		Rules:       DefaultPricingRules(testTenant),
		AsOf:        testAsOf,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidVehicle))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cost_basis", verr.Field)

	_, err = NewEngine(Options{}).Suggest(Request{Vehicle: v, Rules: DefaultPricingRules(testTenant), AsOf: testAsOf})
	require.ErrorAs(t, err, &verr)
}

func TestSuggestWithoutMarginFloorNeedsNoCost(t *testing.T) {
	v := testVehicle()
	v.CostBasis = decimal.NullDecimal{}
	rules := DefaultPricingRules(testTenant)
	rules.MinGrossPct = 0

	s, err := NewEngine(Options{}).Suggest(Request{
		Vehicle:     v,
		Comparables: listingsAt(300000, 301000, 302000),
		Rules:       rules,
		AsOf:        testAsOf,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusMarketBased, s.Status)
}

func TestSuggestRejectsIncompleteProfile(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*VehicleProfile)
		field  string
	}{
		{"make", func(v *VehicleProfile) { v.Make = "" }, "make"},
		{"blank model", func(v *VehicleProfile) { v.Model = "   " }, "model"},
		{"year", func(v *VehicleProfile) { v.ModelYear = 0 }, "model_year"},
		{"mileage", func(v *VehicleProfile) { v.MileageKm = -1 }, "mileage_km"},
		{"cost", func(v *VehicleProfile) { v.CostBasis = decimal.NewNullDecimal(decimal.Zero) }, "cost_basis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testVehicle()
			tt.mutate(&v)
			_, err := NewEngine(Options{}).Suggest(Request{
				Vehicle:     v,
				Comparables: listingsAt(300000),
				Rules:       DefaultPricingRules(testTenant),
				AsOf:        testAsOf,
			})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSuggestMarginGuardrailRaisesPrice(t *testing.T) {
	v := testVehicle()
	v.CostBasis = decimal.NewNullDecimal(decimal.NewFromInt(195000))

	s, err := NewEngine(Options{}).Suggest(Request{
		Vehicle:     v,
		Comparables: listingsAt(199000, 200000, 201000),
		Rules:       DefaultPricingRules(testTenant),
		AsOf:        testAsOf,
	})
	require.NoError(t, err)

	assert.Equal(t, "207447", s.Bands.Mid.String())
	assert.True(t, s.HasReason(ReasonMinMarginGuardrail))
	margin, ok := GrossMargin(s.Bands.Mid, v.CostBasis.Decimal)
	require.True(t, ok)
	assert.GreaterOrEqual(t, margin, 0.06)
	assert.True(t, s.Bands.Low.LessThanOrEqual(s.Bands.Mid))
	assert.True(t, s.Bands.Mid.LessThanOrEqual(s.Bands.High))
}

func TestSuggestBelowTargetMarginReason(t *testing.T) {
	v := testVehicle()
	v.CostBasis = decimal.NewNullDecimal(decimal.NewFromInt(270000))

	s, err := NewEngine(Options{}).Suggest(Request{
		Vehicle:     v,
		Comparables: listingsAt(299000, 300000, 301000),
		Rules:       DefaultPricingRules(testTenant),
		AsOf:        testAsOf,
	})
	require.NoError(t, err)
	assert.True(t, s.HasReason(ReasonBelowTargetMargin))
	assert.False(t, s.HasReason(ReasonMinMarginGuardrail))
}

func TestSuggestAgingDiscountOnComparable(t *testing.T) {
	listings := listingsAt(300000)
	listings[0].ListedAt = testAsOf.AddDate(0, 0, -50)
	v := testVehicle()
	v.CostBasis = decimal.NewNullDecimal(decimal.NewFromInt(100000))

	s, err := NewEngine(Options{}).Suggest(Request{
		Vehicle:     v,
		Comparables: listings,
		Rules:       DefaultPricingRules(testTenant),
		AsOf:        testAsOf,
	})
	require.NoError(t, err)
	require.Len(t, s.SampleComps, 1)

	comp := s.SampleComps[0]
	assert.Equal(t, 50, comp.AgeDays)
	assert.Equal(t, 0.03, comp.Discount)
	assert.Equal(t, "291000", comp.AdjustedPrice.String())
	assert.Equal(t, "291000", s.Market.MarketAnchor.String())
}

func TestSuggestSubjectAgingAppliedToAnchor(t *testing.T) {
	v := testVehicle()
	v.DaysOnLot = 62

	s, err := NewEngine(Options{}).Suggest(Request{
		Vehicle:     v,
		Comparables: listingsAt(300000, 300000, 300000),
		Rules:       DefaultPricingRules(testTenant),
		AsOf:        testAsOf,
	})
	require.NoError(t, err)

	assert.Equal(t, "300000", s.Market.MarketAnchor.String())
	assert.Equal(t, "285000", s.Market.AgingAppliedAnchor.String())
	assert.True(t, s.Market.AgingAppliedAnchor.Equal(s.Bands.Mid))
	assert.True(t, s.HasReason(ReasonVehicleAging))
}

func TestSuggestSingleComparableUsesFixedSpread(t *testing.T) {
	s, err := NewEngine(Options{}).Suggest(Request{
		Vehicle:     testVehicle(),
		Comparables: listingsAt(300000),
		Rules:       DefaultPricingRules(testTenant),
		AsOf:        testAsOf,
	})
	require.NoError(t, err)

	assert.Equal(t, "285000", s.Bands.Low.String())
	assert.Equal(t, "300000", s.Bands.Mid.String())
	assert.Equal(t, "315000", s.Bands.High.String())
	assert.True(t, s.HasReason(ReasonSingleComparable))
	assert.True(t, s.HasReason(ReasonSearchWidened))
}

func TestSuggestHighDemandReason(t *testing.T) {
	prices := make([]int64, 12)
	for i := range prices {
		prices[i] = 300000 + int64(i)*500
	}
	s, err := NewEngine(Options{}).Suggest(Request{
		Vehicle:     testVehicle(),
		Comparables: listingsAt(prices...),
		Rules:       DefaultPricingRules(testTenant),
		AsOf:        testAsOf,
	})
	require.NoError(t, err)
	assert.True(t, s.HasReason(ReasonHighDemand))
}

func TestSuggestNormalizesMalformedRules(t *testing.T) {
	rules := DefaultPricingRules(testTenant)
	rules.Tiers[0].Discount = -1
	rules.Tiers[2].Days = 10

	s, err := NewEngine(Options{}).Suggest(Request{
		Vehicle:     testVehicle(),
		Comparables: listingsAt(300000, 301000, 302000),
		Rules:       rules,
		AsOf:        testAsOf,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonRulesAdjusted, s.Reasons[0].Code)
}

func TestSuggestIsIdempotent(t *testing.T) {
	engine := NewEngine(DefaultOptions())
	listings := listingsAt(280000, 295000, 300000, 310000, 335000, 290000)
	listings[2].ListedAt = testAsOf.AddDate(0, 0, -47)
	listings[4].ModelYear = 2021
	listings[5].Fuel = "Diesel"
	req := Request{Vehicle: testVehicle(), Comparables: listings, Rules: DefaultPricingRules(testTenant), AsOf: testAsOf}

	first, err := engine.Suggest(req)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := engine.Suggest(req)
			if err != nil {
				return
			}
			results[i], _ = json.Marshal(s)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, string(firstJSON), string(got))
	}
}

func TestSuggestInvariantsHoldForRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	engine := NewEngine(DefaultOptions())
	rules := DefaultPricingRules(testTenant)

	for i := 0; i < 200; i++ {
		v := testVehicle()
		v.MileageKm = rng.Intn(250000)
		v.DaysOnLot = rng.Intn(120)
		v.CostBasis = decimal.NewNullDecimal(decimal.NewFromInt(int64(50000 + rng.Intn(400000))))

		n := rng.Intn(15)
		listings := make([]ComparableListing, 0, n)
		for j := 0; j < n; j++ {
			l := testListing(int64(j+1), int64(80000+rng.Intn(400000)))
			l.ModelYear = 2018 + rng.Intn(7)
			l.MileageKm = rng.Intn(250000)
			l.ListedAt = testAsOf.AddDate(0, 0, -rng.Intn(120))
			listings = append(listings, l)
		}

		s, err := engine.Suggest(Request{Vehicle: v, Comparables: listings, Rules: rules, AsOf: testAsOf})
		require.NoError(t, err)

		assert.True(t, s.Bands.Low.LessThanOrEqual(s.Bands.Mid))
		assert.True(t, s.Bands.Mid.LessThanOrEqual(s.Bands.High))
		assert.False(t, s.Bands.Low.IsNegative())
		assert.GreaterOrEqual(t, s.Saleability.Prob30, s.Saleability.Prob14)
		assert.LessOrEqual(t, len(s.SampleComps), len(listings))

		margin, ok := GrossMargin(s.Bands.Mid, v.CostBasis.Decimal)
		require.True(t, ok)
		assert.GreaterOrEqual(t, margin+1e-9, rules.MinGrossPct)
	}
}

func TestSuggestRequiresAsOf(t *testing.T) {
	_, err := NewEngine(Options{}).Suggest(Request{Vehicle: testVehicle(), Rules: DefaultPricingRules(testTenant)})
	assert.ErrorIs(t, err, ErrInvalidVehicle)
}

func TestSuggestionValidateCatchesBrokenOutput(t *testing.T) {
	s := Suggestion{
		Status: StatusMarketBased,
		Market: &MarketBasis{},
		Bands: Bands{
			Low:  decimal.NewFromInt(310000),
			Mid:  decimal.NewFromInt(300000),
			High: decimal.NewFromInt(320000),
		},
		Saleability: Saleability{Prob14: 0.5, Prob30: 0.6, Rating: RatingMedium},
	}
	assert.ErrorIs(t, s.Validate(), ErrInvariantViolation)

	s.Bands.Low = decimal.NewFromInt(290000)
	assert.NoError(t, s.Validate())

	s.Saleability.Prob30 = 0.4
	assert.ErrorIs(t, s.Validate(), ErrInvariantViolation)

	s.Saleability.Prob30 = 0.6
	s.CostPlus = &CostPlusBasis{}
	assert.ErrorIs(t, s.Validate(), ErrInvariantViolation)
}

func TestSuggestFullDiscountTierOnComparables(t *testing.T) {
	rules := DefaultPricingRules(testTenant)
	rules.Tiers[2] = AgingTier{Days: 60, Discount: 1}
	listings := listingsAt(300000, 300000, 300000)
	for i := range listings {
		listings[i].ListedAt = testAsOf.AddDate(0, 0, -90)
	}
	v := testVehicle()
	v.CostBasis = decimal.NewNullDecimal(decimal.NewFromInt(100000))

	s, err := NewEngine(Options{}).Suggest(Request{Vehicle: v, Comparables: listings, Rules: rules, AsOf: testAsOf})
	require.NoError(t, err)

	assert.Equal(t, StatusMarketBased, s.Status)
	assert.Equal(t, "15000", s.Market.MarketAnchor.String())
	assert.Equal(t, "106383", s.Bands.Mid.String())
	assert.True(t, s.HasReason(ReasonRulesAdjusted))
	assert.True(t, s.HasReason(ReasonMinMarginGuardrail))
}

func TestSuggestFullDiscountTierOnSubjectWithoutCost(t *testing.T) {
	rules := DefaultPricingRules(testTenant)
	rules.MinGrossPct = 0
	rules.Tiers[2] = AgingTier{Days: 60, Discount: 1}
	v := testVehicle()
	v.DaysOnLot = 90
	v.CostBasis = decimal.NullDecimal{}

	s, err := NewEngine(Options{}).Suggest(Request{
		Vehicle:     v,
		Comparables: listingsAt(300000, 300000, 300000),
		Rules:       rules,
		AsOf:        testAsOf,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusMarketBased, s.Status)
	assert.Equal(t, "15000", s.Bands.Mid.String())
	assert.True(t, s.Bands.Low.IsPositive())
}

func TestHasUsablePrices(t *testing.T) {
	rules := DefaultPricingRules(testTenant)
	dead := []Candidate{{NormalizedPrice: 300000, Weight: 0}, {NormalizedPrice: 0, Weight: 1}}
	assert.False(t, hasUsablePrices(dead, rules))
	assert.False(t, hasUsablePrices(nil, rules))

	live := append(dead, Candidate{NormalizedPrice: 300000, Weight: 0.5, AgeDays: 90})
	assert.True(t, hasUsablePrices(live, rules))
}

func TestSuggestionValidateRejectsZeroMarketMid(t *testing.T) {
	s := Suggestion{
		Status:      StatusMarketBased,
		Market:      &MarketBasis{},
		Bands:       Bands{Low: decimal.Zero, Mid: decimal.Zero, High: decimal.Zero},
		Saleability: Saleability{Prob14: 0.5, Prob30: 0.6, Rating: RatingMedium},
	}
	assert.ErrorIs(t, s.Validate(), ErrInvariantViolation)
}

func TestSuggestRulesWithoutCutoffsAreNotAdjusted(t *testing.T) {
	rules := DefaultPricingRules(testTenant)
	rules.HighRatingCutoff, rules.LowRatingCutoff = 0, 0

	s, err := NewEngine(Options{}).Suggest(Request{
		Vehicle:     testVehicle(),
		Comparables: listingsAt(300000, 301000, 302000),
		Rules:       rules,
		AsOf:        testAsOf,
	})
	require.NoError(t, err)
	assert.False(t, s.HasReason(ReasonRulesAdjusted))
}
