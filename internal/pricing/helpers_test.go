package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	testAsOf   = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	testTenant = uuid.MustParse("6f1c8a52-8d7e-4b7a-9a55-0d3c2b6f4e10")
)

func testVehicle() VehicleProfile {
	return VehicleProfile{
		ID:             uuid.MustParse("0b8e7a2c-1f44-4c0a-8f43-3b9de1a7c6d2"),
		TenantID:       testTenant,
		Make:           "Volkswagen",
		Model:          "Golf",
		Variant:        "GTI",
		ModelYear:      2022,
		MileageKm:      60000,
		Fuel:           "Petrol",
		Gearbox:        "Automatic",
		EquipmentScore: 10,
		DaysOnLot:      0,
		AskingPrice:    decimal.NewFromInt(309900),
		CostBasis:      decimal.NewNullDecimal(decimal.NewFromInt(250000)),
	}
}

func testListing(id int64, price int64) ComparableListing {
	return ComparableListing{
		ID:        id,
		Source:    "finn",
		Make:      "Volkswagen",
		Model:     "Golf",
		Variant:   "GTI",
		ModelYear: 2022,
		Fuel:      "Petrol",
		Gearbox:   "Automatic",
		MileageKm: 60000,
		Price:     decimal.NewFromInt(price),
		Location:  "Oslo",
		ListedAt:  testAsOf,
		FetchedAt: testAsOf,
	}
}

func listingsAt(prices ...int64) []ComparableListing {
	out := make([]ComparableListing, 0, len(prices))
	for i, p := range prices {
		out = append(out, testListing(int64(i+1), p))
	}
	return out
}
