package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealer-pricing/internal/config"
	"dealer-pricing/internal/pricing"
	"dealer-pricing/internal/service"
	"dealer-pricing/internal/storage"
)

var (
	tenant  = uuid.MustParse("6f1c8a52-8d7e-4b7a-9a55-0d3c2b6f4e10")
	vehicle = uuid.MustParse("0b8e7a2c-1f44-4c0a-8f43-3b9de1a7c6d2")
)

type fakeService struct {
	engine    *pricing.Engine
	persisted int
	applied   decimal.Decimal
	applyErr  error
	rules     pricing.PricingRules
}

func (f *fakeService) SuggestForProfile(_ context.Context, tenantID uuid.UUID, profile pricing.VehicleProfile, asOf time.Time) (pricing.Suggestion, error) {
	profile.TenantID = tenantID
	if asOf.IsZero() {
		asOf = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	}
	return f.engine.Suggest(pricing.Request{Vehicle: profile, Rules: pricing.DefaultPricingRules(tenantID), AsOf: asOf})
}

func (f *fakeService) SuggestForVehicle(_ context.Context, tenantID, vehicleID uuid.UUID, asOf time.Time) (pricing.Suggestion, storage.VehicleRecord, error) {
	if vehicleID != vehicle {
		return pricing.Suggestion{}, storage.VehicleRecord{}, storage.ErrNotFound
	}
	profile := pricing.VehicleProfile{
		ID: vehicleID, Make: "Skoda", Model: "Octavia", ModelYear: 2020, MileageKm: 80000,
		CostBasis: decimal.NewNullDecimal(decimal.NewFromInt(176000)),
	}
	sug, err := f.SuggestForProfile(context.Background(), tenantID, profile, asOf)
	return sug, storage.VehicleRecord{ID: vehicleID}, err
}

func (f *fakeService) PersistSuggestion(context.Context, pricing.Suggestion) (storage.SuggestionRecord, error) {
	f.persisted++
	return storage.SuggestionRecord{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111")}, nil
}

func (f *fakeService) LatestSuggestion(_ context.Context, tenantID, vehicleID uuid.UUID) (storage.SuggestionRecord, error) {
	if vehicleID != vehicle {
		return storage.SuggestionRecord{}, storage.ErrNotFound
	}
	sug, _, err := f.SuggestForVehicle(context.Background(), tenantID, vehicleID, time.Time{})
	if err != nil {
		return storage.SuggestionRecord{}, err
	}
	return storage.SuggestionRecord{
		ID:         uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		TenantID:   tenantID,
		VehicleID:  vehicleID,
		Suggestion: sug,
	}, nil
}

func (f *fakeService) ApplySuggestedPrice(_ context.Context, _, _ uuid.UUID, price decimal.Decimal) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = price
	return nil
}

func (f *fakeService) GetRules(_ context.Context, tenantID uuid.UUID) (pricing.PricingRules, error) {
	if f.rules.TenantID == tenantID {
		return f.rules, nil
	}
	return pricing.DefaultPricingRules(tenantID), nil
}

func (f *fakeService) UpdateRules(_ context.Context, tenantID uuid.UUID, rules pricing.PricingRules) (pricing.PricingRules, error) {
	rules.TenantID = tenantID
	if err := rules.Validate(); err != nil {
		return pricing.PricingRules{}, err
	}
	f.rules = rules
	return rules, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestServer(svc PricingService, health Pinger) *Server {
	return New(config.HTTPConfig{ListenAddr: ":0", BodyLimit: 1 << 20}, svc, health, zerolog.Nop())
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestHealthz(t *testing.T) {
	resp, _ := do(t, newTestServer(&fakeService{}, fakePinger{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, _ = do(t, newTestServer(&fakeService{}, fakePinger{err: errors.New("down")}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSuggestProfileCostPlus(t *testing.T) {
	svc := &fakeService{engine: pricing.NewEngine(pricing.DefaultOptions())}
	s := newTestServer(svc, nil)

	body := `{"vehicle":{"make":"Lada","model":"Niva","model_year":2019,"mileage_km":90000,"cost_basis":"88000"},"persist":true}`
	resp, raw := do(t, s, http.MethodPost, "/api/v1/tenants/"+tenant.String()+"/suggestions", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var out suggestionResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, pricing.StatusCostPlusFallback, out.Suggestion.Status)
	assert.Equal(t, "100000", out.Suggestion.Bands.Mid.String())
	assert.Equal(t, tenant, out.Suggestion.TenantID)
	require.NotNil(t, out.SuggestionID)
	assert.Equal(t, 1, svc.persisted)
}

func TestSuggestProfileValidationError(t *testing.T) {
	s := newTestServer(&fakeService{engine: pricing.NewEngine(pricing.DefaultOptions())}, nil)

	body := `{"vehicle":{"make":"Lada","model":"Niva","model_year":2019,"mileage_km":90000}}`
	resp, raw := do(t, s, http.MethodPost, "/api/v1/tenants/"+tenant.String()+"/suggestions", body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var out errorBody
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "cost_basis", out.Field)
}

func TestSuggestProfileBadTenant(t *testing.T) {
	s := newTestServer(&fakeService{}, nil)
	resp, _ := do(t, s, http.MethodPost, "/api/v1/tenants/nope/suggestions", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSuggestVehicle(t *testing.T) {
	svc := &fakeService{engine: pricing.NewEngine(pricing.DefaultOptions())}
	s := newTestServer(svc, nil)
	base := "/api/v1/tenants/" + tenant.String() + "/vehicles/"

	resp, raw := do(t, s, http.MethodGet, base+vehicle.String()+"/suggestion?as_of=2025-03-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var out suggestionResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, vehicle, out.Suggestion.VehicleID)
	assert.Nil(t, out.SuggestionID)
	assert.Zero(t, svc.persisted)

	resp, _ = do(t, s, http.MethodGet, base+uuid.NewString()+"/suggestion", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, s, http.MethodGet, base+vehicle.String()+"/suggestion?as_of=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLatestSuggestion(t *testing.T) {
	svc := &fakeService{engine: pricing.NewEngine(pricing.DefaultOptions())}
	s := newTestServer(svc, nil)
	base := "/api/v1/tenants/" + tenant.String() + "/vehicles/"

	resp, raw := do(t, s, http.MethodGet, base+vehicle.String()+"/suggestions/latest", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var out suggestionResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	require.NotNil(t, out.SuggestionID)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", out.SuggestionID.String())
	assert.Equal(t, vehicle, out.Suggestion.VehicleID)
	assert.True(t, out.Suggestion.Recommended().IsPositive())

	resp, _ = do(t, s, http.MethodGet, base+uuid.NewString()+"/suggestions/latest", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApplyPrice(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc, nil)
	path := "/api/v1/tenants/" + tenant.String() + "/vehicles/" + vehicle.String() + "/apply-price"

	resp, raw := do(t, s, http.MethodPost, path, `{"price":"199900"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "199900", svc.applied.String())

	resp, _ = do(t, s, http.MethodPost, path, `{"price":"cheap"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = do(t, s, http.MethodPost, path, `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	svc.applyErr = service.ErrVehicleNotInStock
	resp, _ = do(t, s, http.MethodPost, path, `{"price":"199900"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	svc.applyErr = storage.ErrNotConfigured
	resp, _ = do(t, s, http.MethodPost, path, `{"price":"199900"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPricingRulesRoundTrip(t *testing.T) {
	s := newTestServer(&fakeService{}, nil)
	path := "/api/v1/tenants/" + tenant.String() + "/pricing-rules"

	resp, raw := do(t, s, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got pricing.PricingRules
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, pricing.DefaultPricingRules(tenant), got)

	update := `{"target_gross_pct":0.15,"min_gross_pct":0.05,"aging_tiers":[{"days":30,"discount":0.01},{"days":60,"discount":0.03},{"days":90,"discount":0.06}],"high_rating_cutoff":0.7,"low_rating_cutoff":0.4}`
	resp, raw = do(t, s, http.MethodPut, path, update)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = do(t, s, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 0.15, got.TargetGrossPct)
	assert.Equal(t, 90, got.Tiers[2].Days)

	resp, raw = do(t, s, http.MethodPut, path, `{"target_gross_pct":0.05,"min_gross_pct":0.10}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var out errorBody
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "min_gross_pct", out.Field)
}
