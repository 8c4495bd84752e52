package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status tags which pricing basis produced a suggestion.
type Status string

const (
	StatusMarketBased      Status = "market-based"
	StatusCostPlusFallback Status = "cost-plus-fallback"
)

// Rating is the qualitative saleability bucket.
type Rating string

const (
	RatingHigh   Rating = "High"
	RatingMedium Rating = "Medium"
	RatingLow    Rating = "Low"
)

// VehicleProfile is the subject of a recommendation. It is owned by the
// inventory record; the engine only reads it.
type VehicleProfile struct {
	ID             uuid.UUID           `json:"id"`
	TenantID       uuid.UUID           `json:"tenant_id"`
	Make           string              `json:"make" validate:"required"`
	Model          string              `json:"model" validate:"required"`
	Variant        string              `json:"variant,omitempty"`
	ModelYear      int                 `json:"model_year" validate:"required,gte=1950,lte=2100"`
	MileageKm      int                 `json:"mileage_km" validate:"gte=0"`
	Fuel           string              `json:"fuel,omitempty"`
	Gearbox        string              `json:"gearbox,omitempty"`
	EquipmentScore int                 `json:"equipment_score" validate:"gte=0"`
	DaysOnLot      int                 `json:"days_on_lot" validate:"gte=0"`
	AskingPrice    decimal.Decimal     `json:"asking_price"`
	CostBasis      decimal.NullDecimal `json:"cost_basis"`
}

// ComparableListing is a third-party or historical listing used as pricing
// evidence. Rows are immutable once stored.
type ComparableListing struct {
	ID        int64           `json:"id"`
	Source    string          `json:"source"`
	RegNr     string          `json:"regnr,omitempty"`
	Make      string          `json:"make"`
	Model     string          `json:"model"`
	Variant   string          `json:"variant,omitempty"`
	ModelYear int             `json:"year"`
	Fuel      string          `json:"fuel,omitempty"`
	Gearbox   string          `json:"gearbox,omitempty"`
	MileageKm int             `json:"km"`
	Price     decimal.Decimal `json:"price"`
	Location  string          `json:"location,omitempty"`
	ListedAt  time.Time       `json:"listed_at"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Features is the normalized comparison of a listing against the subject.
type Features struct {
	YearDelta    int     `json:"year_delta"`
	MileageDelta float64 `json:"mileage_delta"`
	VariantMatch bool    `json:"variant_match"`
	FuelMatch    bool    `json:"fuel_match"`
	GearboxMatch bool    `json:"gearbox_match"`
}

// Bands is the low/mid/high price spread. Mid is the recommended price; low
// and high approximate p10 and p90.
type Bands struct {
	Low  decimal.Decimal `json:"low"`
	Mid  decimal.Decimal `json:"mid"`
	High decimal.Decimal `json:"high"`
}

// Saleability holds probability-of-sale estimates for the fixed horizons.
type Saleability struct {
	Prob14 float64 `json:"prob_14d"`
	Prob30 float64 `json:"prob_30d"`
	Rating Rating  `json:"rating"`
}

// MarketBasis is set on market-based suggestions only.
type MarketBasis struct {
	MarketAnchor       decimal.Decimal `json:"market_anchor"`
	AgingAppliedAnchor decimal.Decimal `json:"aging_applied_anchor"`
	Dispersion         float64         `json:"dispersion"`
	SampleSize         int             `json:"sample_size"`
	Considered         int             `json:"considered"`
	WidenSteps         int             `json:"widen_steps"`
}

// CostPlusBasis is set on cost-plus fallback suggestions only.
type CostPlusBasis struct {
	CostBasis decimal.Decimal `json:"cost_basis"`
	MarginPct float64         `json:"margin_pct"`
}

// SampleComp is a comparable that contributed to a market-based suggestion.
type SampleComp struct {
	ListingID     int64           `json:"listing_id"`
	Source        string          `json:"source"`
	RegNr         string          `json:"regnr,omitempty"`
	ModelYear     int             `json:"year"`
	MileageKm     int             `json:"km"`
	Location      string          `json:"location,omitempty"`
	ListedAt      time.Time       `json:"listed_at"`
	AgeDays       int             `json:"age_days"`
	Price         decimal.Decimal `json:"price"`
	AdjustedPrice decimal.Decimal `json:"adjusted_price"`
	Discount      float64         `json:"discount"`
	Weight        float64         `json:"weight"`
	Features      Features        `json:"features"`
}

// Reason is a short, deterministic justification attached to a suggestion.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Suggestion is the engine output. Exactly one of Market or CostPlus is set,
// matching Status.
type Suggestion struct {
	VehicleID   uuid.UUID      `json:"vehicle_id"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	Status      Status         `json:"status"`
	Market      *MarketBasis   `json:"market,omitempty"`
	CostPlus    *CostPlusBasis `json:"cost_plus,omitempty"`
	Bands       Bands          `json:"bands"`
	Saleability Saleability    `json:"saleability"`
	SampleComps []SampleComp   `json:"sample_comps"`
	Reasons     []Reason       `json:"reasons"`
	AsOf        time.Time      `json:"as_of"`
}

// Recommended returns the final suggested price.
func (s Suggestion) Recommended() decimal.Decimal {
	return s.Bands.Mid
}

// HasReason reports whether a reason with the given code was attached.
func (s Suggestion) HasReason(code string) bool {
	for _, r := range s.Reasons {
		if r.Code == code {
			return true
		}
	}
	return false
}
