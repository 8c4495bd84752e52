package pricing

import (
	"math"
	"sort"
	"strings"
	"time"
)

const minRecencyWeight = 0.1

// Candidate is a listing that passed the relevance filter, annotated with its
// feature vector and relevance weight.
type Candidate struct {
	Index           int
	Listing         ComparableListing
	Features        Features
	AgeDays         int
	NormalizedPrice float64
	Weight          float64
}

// FilterResult is the ordered, capped output of FilterComparables.
type FilterResult struct {
	Candidates   []Candidate
	Considered   int
	WidenSteps   int
	Insufficient bool
}

// FilterComparables selects the listings relevant to subject, most relevant
// first. Same make and model is required; the year and mileage windows widen
// step by step while fewer than MinSample listings qualify.
func FilterComparables(subject VehicleProfile, listings []ComparableListing, asOf time.Time, opts Options) FilterResult {
	opts = opts.withDefaults()

	pool := make([]int, 0, len(listings))
	for i, l := range listings {
		if !sameKey(l.Make, subject.Make) || !sameKey(l.Model, subject.Model) {
			continue
		}
		if !l.Price.IsPositive() {
			continue
		}
		pool = append(pool, i)
	}

	result := FilterResult{Considered: len(pool)}
	if len(pool) == 0 {
		result.Insufficient = true
		result.Candidates = []Candidate{}
		return result
	}

	yearWindow := opts.YearWindow
	bandPct := opts.MileageBandPct
	var selected []Candidate
	for {
		selected = make([]Candidate, 0, len(pool))
		for _, idx := range pool {
			l := listings[idx]
			if !withinWindow(subject, l, yearWindow, bandPct, opts.MileageFloorKm) {
				continue
			}
			selected = append(selected, newCandidate(idx, subject, l, asOf, opts))
		}
		if len(selected) >= opts.MinSample || result.WidenSteps >= opts.MaxWidenSteps {
			break
		}
		result.WidenSteps++
		yearWindow += opts.WidenYearStep
		bandPct += opts.WidenMileageStep
	}

	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		if !a.Listing.ListedAt.Equal(b.Listing.ListedAt) {
			return a.Listing.ListedAt.After(b.Listing.ListedAt)
		}
		if a.Listing.Source != b.Listing.Source {
			return a.Listing.Source < b.Listing.Source
		}
		return a.Listing.ID < b.Listing.ID
	})

	if len(selected) > opts.MaxSample {
		selected = selected[:opts.MaxSample]
	}

	result.Candidates = selected
	result.Insufficient = len(selected) == 0
	return result
}

func withinWindow(subject VehicleProfile, l ComparableListing, yearWindow int, bandPct float64, floorKm int) bool {
	if absInt(l.ModelYear-subject.ModelYear) > yearWindow {
		return false
	}
	tolerance := math.Max(float64(subject.MileageKm)*bandPct, float64(floorKm))
	return math.Abs(float64(l.MileageKm-subject.MileageKm)) <= tolerance
}

func newCandidate(idx int, subject VehicleProfile, l ComparableListing, asOf time.Time, opts Options) Candidate {
	scale := math.Max(float64(subject.MileageKm), float64(opts.MileageFloorKm))
	features := Features{
		YearDelta:    l.ModelYear - subject.ModelYear,
		MileageDelta: roundTo(float64(l.MileageKm-subject.MileageKm)/scale, 4),
		VariantMatch: attributeMatch(l.Variant, subject.Variant),
		FuelMatch:    attributeMatch(l.Fuel, subject.Fuel),
		GearboxMatch: attributeMatch(l.Gearbox, subject.Gearbox),
	}
	age := AgeInDays(l.ListedAt, asOf)

	price := l.Price.InexactFloat64()
	if opts.NormalizeSpecPremiums {
		price = normalizeSpec(price, subject, l)
	}

	return Candidate{
		Index:           idx,
		Listing:         l,
		Features:        features,
		AgeDays:         age,
		NormalizedPrice: price,
		Weight:          relevanceWeight(features, age, opts.RecencyHalfLifeDays),
	}
}

func relevanceWeight(f Features, ageDays int, halfLife float64) float64 {
	year := 1 / (1 + math.Abs(float64(f.YearDelta)))
	mileage := 1 / (1 + 2*math.Abs(f.MileageDelta))

	match := 1.0
	if f.VariantMatch {
		match += 0.25
	}
	if f.FuelMatch {
		match += 0.15
	}
	if f.GearboxMatch {
		match += 0.15
	}

	recency := math.Max(math.Pow(0.5, float64(ageDays)/halfLife), minRecencyWeight)
	return roundTo(year*mileage*match*recency, 6)
}

// normalizeSpec rescales a listing price to the subject's fuel and gearbox
// using the market premium tables. Unknown attributes leave the price as is.
func normalizeSpec(price float64, subject VehicleProfile, l ComparableListing) float64 {
	if sp, ok := fuelPremium(subject.Fuel); ok {
		if lp, ok := fuelPremium(l.Fuel); ok {
			price = price * (1 + sp) / (1 + lp)
		}
	}
	if sp, ok := gearboxPremium(subject.Gearbox); ok {
		if lp, ok := gearboxPremium(l.Gearbox); ok {
			price = price * (1 + sp) / (1 + lp)
		}
	}
	return price
}

func fuelPremium(fuel string) (float64, bool) {
	key := normalizeKey(fuel)
	switch {
	case key == "":
		return 0, false
	case strings.Contains(key, "hybrid"):
		return 0.10, true
	case key == "electric" || key == "el" || key == "ev":
		return 0.20, true
	case key == "diesel":
		return 0.02, true
	case key == "petrol" || key == "bensin" || key == "gasoline":
		return 0, true
	}
	return 0, false
}

func gearboxPremium(gearbox string) (float64, bool) {
	switch normalizeKey(gearbox) {
	case "auto", "automatic", "automat":
		return 0.05, true
	case "manual", "manuell":
		return 0, true
	}
	return 0, false
}

func attributeMatch(a, b string) bool {
	ka, kb := normalizeKey(a), normalizeKey(b)
	return ka != "" && ka == kb
}

func sameKey(a, b string) bool {
	return normalizeKey(a) == normalizeKey(b)
}

func normalizeKey(v string) string {
	return strings.ToLower(strings.Join(strings.Fields(v), " "))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
