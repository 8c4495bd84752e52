package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dealer-pricing/internal/pricing"
)

// Vehicle statuses.
const (
	VehicleInStock = "in_stock"
	VehicleSold    = "sold"
)

// VehicleRecord is an inventory row. DaysOnLot is derived from StockedAt when
// the record is turned into an engine profile.
type VehicleRecord struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	StockNumber    string
	RegNr          string
	Make           string
	Model          string
	Variant        string
	ModelYear      int
	MileageKm      int
	Fuel           string
	Gearbox        string
	EquipmentScore int
	AskingPrice    decimal.Decimal
	CostBasis      decimal.NullDecimal
	Status         string
	StockedAt      time.Time
	PriceUpdatedAt *time.Time
	UpdatedAt      time.Time
}

// Profile converts the record into the engine's input shape as of asOf.
func (v VehicleRecord) Profile(asOf time.Time) pricing.VehicleProfile {
	return pricing.VehicleProfile{
		ID:             v.ID,
		TenantID:       v.TenantID,
		Make:           v.Make,
		Model:          v.Model,
		Variant:        v.Variant,
		ModelYear:      v.ModelYear,
		MileageKm:      v.MileageKm,
		Fuel:           v.Fuel,
		Gearbox:        v.Gearbox,
		EquipmentScore: v.EquipmentScore,
		DaysOnLot:      pricing.AgeInDays(v.StockedAt, asOf),
		AskingPrice:    v.AskingPrice,
		CostBasis:      v.CostBasis,
	}
}

// ComparableQuery narrows the comparable listing scan. The engine applies the
// precise relevance filter; this only bounds what is loaded. A zero year or
// limit leaves that bound open.
type ComparableQuery struct {
	Make    string
	Model   string
	MinYear int
	MaxYear int
	Limit   int
}

// SuggestionRecord is a persisted suggestion snapshot.
type SuggestionRecord struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	VehicleID  uuid.UUID
	Suggestion pricing.Suggestion
	CreatedAt  time.Time
}

// AlertRecord captures an emitted deviation alert for cooldown and auditing.
type AlertRecord struct {
	ID           int64
	TenantID     uuid.UUID
	VehicleID    uuid.UUID
	SuggestionID *uuid.UUID
	AskingPrice  decimal.Decimal
	SuggestedMid decimal.Decimal
	DeviationPct decimal.Decimal
	ThresholdPct decimal.Decimal
	Direction    string
	Channels     []string
	CreatedAt    time.Time
}
