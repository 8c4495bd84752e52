package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dealer-pricing/internal/alerting"
	"dealer-pricing/internal/config"
	"dealer-pricing/internal/pricing"
	"dealer-pricing/internal/scheduler"
	"dealer-pricing/internal/storage"
)

var (
	// ErrInvalidPrice rejects a non-positive price on apply.
	ErrInvalidPrice = errors.New("service: price must be greater than zero")
	// ErrVehicleNotInStock rejects applying a price to a sold vehicle.
	ErrVehicleNotInStock = errors.New("service: vehicle is not in stock")
)

// RulesProvider hands out tenant rules, typically from a cache.
type RulesProvider interface {
	Get(ctx context.Context, tenantID uuid.UUID) (pricing.PricingRules, error)
	Invalidate(tenantID uuid.UUID)
}

// Deps collects the collaborators of the service. Nil stores disable the
// features that need them.
type Deps struct {
	Engine      *pricing.Engine
	Comparables storage.ComparableStore
	Vehicles    storage.VehicleStore
	Rules       RulesProvider
	RulesStore  storage.RulesStore
	Suggestions storage.SuggestionStore
	Alerts      storage.AlertStore
	Locker      storage.AdvisoryLocker
	Notifier    alerting.Notifier
	Scheduler   *scheduler.Scheduler
}

// Service orchestrates comparable loading, suggestion, persistence and alerting.
type Service struct {
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time

	yearPrefilter int
	maxListings   int

	workers        int
	vehicleTimeout time.Duration
	persist        bool
	pageSize       int
	lockKey        int64
	tenants        []uuid.UUID

	alertsOn  bool
	threshold decimal.Decimal
	cooldown  time.Duration
	retention time.Duration
	channels  []string
}

// New constructs the pricing service.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) (*Service, error) {
	if deps.Engine == nil {
		deps.Engine = pricing.NewEngine(cfg.Engine)
	}

	tenants := make([]uuid.UUID, 0, len(cfg.Reprice.Tenants))
	for _, raw := range cfg.Reprice.Tenants {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("reprice.tenants: %q: %w", raw, err)
		}
		tenants = append(tenants, id)
	}

	threshold := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.ThresholdPct > 0 {
		threshold = decimal.NewFromFloat(cfg.Alerting.ThresholdPct)
	}

	workers := cfg.Reprice.Workers
	if workers <= 0 {
		workers = 1
	}
	pageSize := cfg.Reprice.InventoryPageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	return &Service{
		deps:           deps,
		logger:         logger.With().Str("component", "service").Logger(),
		now:            func() time.Time { return time.Now().UTC() },
		yearPrefilter:  cfg.Comparables.YearPrefilter,
		maxListings:    cfg.Comparables.MaxListings,
		workers:        workers,
		vehicleTimeout: cfg.Reprice.VehicleTimeout,
		persist:        cfg.Reprice.Persist,
		pageSize:       pageSize,
		lockKey:        cfg.Reprice.AdvisoryLockKey,
		tenants:        tenants,
		alertsOn:       cfg.Alerting.Enabled,
		threshold:      threshold,
		cooldown:       cfg.Alerting.Cooldown,
		retention:      cfg.Alerting.Retention,
		channels:       cfg.Alerting.Channels,
	}, nil
}

// Run begins the scheduled repricing loop.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.deps.Scheduler.Run(ctx, s.Tick)
}

// SuggestForVehicle prices an inventory vehicle.
func (s *Service) SuggestForVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID, asOf time.Time) (pricing.Suggestion, storage.VehicleRecord, error) {
	if s.deps.Vehicles == nil {
		return pricing.Suggestion{}, storage.VehicleRecord{}, storage.ErrNotConfigured
	}
	rec, err := s.deps.Vehicles.GetVehicle(ctx, tenantID, vehicleID)
	if err != nil {
		return pricing.Suggestion{}, storage.VehicleRecord{}, fmt.Errorf("load vehicle: %w", err)
	}
	asOf = s.resolveAsOf(asOf)
	sug, err := s.suggest(ctx, rec.Profile(asOf), asOf)
	return sug, rec, err
}

// SuggestForProfile prices an ad-hoc vehicle that is not in inventory.
func (s *Service) SuggestForProfile(ctx context.Context, tenantID uuid.UUID, profile pricing.VehicleProfile, asOf time.Time) (pricing.Suggestion, error) {
	profile.TenantID = tenantID
	return s.suggest(ctx, profile, s.resolveAsOf(asOf))
}

func (s *Service) suggest(ctx context.Context, profile pricing.VehicleProfile, asOf time.Time) (pricing.Suggestion, error) {
	if err := pricing.ValidateProfile(profile); err != nil {
		return pricing.Suggestion{}, err
	}
	rules, err := s.rules(ctx, profile.TenantID)
	if err != nil {
		return pricing.Suggestion{}, err
	}
	comps, err := s.loadComparables(ctx, profile)
	if err != nil {
		return pricing.Suggestion{}, err
	}
	return s.deps.Engine.Suggest(pricing.Request{
		Vehicle:     profile,
		Comparables: comps,
		Rules:       rules,
		AsOf:        asOf,
	})
}

func (s *Service) loadComparables(ctx context.Context, profile pricing.VehicleProfile) ([]pricing.ComparableListing, error) {
	if s.deps.Comparables == nil {
		return nil, nil
	}
	q := storage.ComparableQuery{
		Make:  profile.Make,
		Model: profile.Model,
		Limit: s.maxListings,
	}
	if s.yearPrefilter > 0 {
		q.MinYear = profile.ModelYear - s.yearPrefilter
		q.MaxYear = profile.ModelYear + s.yearPrefilter
	}
	comps, err := s.deps.Comparables.ListComparables(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load comparables: %w", err)
	}
	return comps, nil
}

func (s *Service) rules(ctx context.Context, tenantID uuid.UUID) (pricing.PricingRules, error) {
	if s.deps.Rules == nil {
		return pricing.DefaultPricingRules(tenantID), nil
	}
	rules, err := s.deps.Rules.Get(ctx, tenantID)
	if err != nil {
		return pricing.PricingRules{}, fmt.Errorf("load pricing rules: %w", err)
	}
	return rules, nil
}

// PersistSuggestion stores a suggestion snapshot.
func (s *Service) PersistSuggestion(ctx context.Context, sug pricing.Suggestion) (storage.SuggestionRecord, error) {
	if s.deps.Suggestions == nil {
		return storage.SuggestionRecord{}, storage.ErrNotConfigured
	}
	rec, err := s.deps.Suggestions.InsertSuggestion(ctx, storage.SuggestionRecord{
		TenantID:   sug.TenantID,
		VehicleID:  sug.VehicleID,
		Suggestion: sug,
	})
	if err != nil {
		return storage.SuggestionRecord{}, fmt.Errorf("persist suggestion: %w", err)
	}
	return rec, nil
}

// ApplySuggestedPrice writes a price back to inventory. The engine itself
// never changes asking prices.
func (s *Service) ApplySuggestedPrice(ctx context.Context, tenantID, vehicleID uuid.UUID, price decimal.Decimal) error {
	if s.deps.Vehicles == nil {
		return storage.ErrNotConfigured
	}
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	rec, err := s.deps.Vehicles.GetVehicle(ctx, tenantID, vehicleID)
	if err != nil {
		return fmt.Errorf("load vehicle: %w", err)
	}
	if rec.Status != storage.VehicleInStock {
		return ErrVehicleNotInStock
	}
	if err := s.deps.Vehicles.UpdateAskingPrice(ctx, tenantID, vehicleID, price.Round(0)); err != nil {
		return fmt.Errorf("update asking price: %w", err)
	}
	s.logger.Info().
		Str("tenant", tenantID.String()).
		Str("vehicle", vehicleID.String()).
		Str("old_price", rec.AskingPrice.String()).
		Str("new_price", price.Round(0).String()).
		Msg("asking price applied")
	return nil
}

// LatestSuggestion returns the newest persisted suggestion for a vehicle.
func (s *Service) LatestSuggestion(ctx context.Context, tenantID, vehicleID uuid.UUID) (storage.SuggestionRecord, error) {
	if s.deps.Suggestions == nil {
		return storage.SuggestionRecord{}, storage.ErrNotConfigured
	}
	rec, err := s.deps.Suggestions.LatestSuggestion(ctx, tenantID, vehicleID)
	if err != nil {
		return storage.SuggestionRecord{}, fmt.Errorf("latest suggestion: %w", err)
	}
	return rec, nil
}

// GetRules returns the effective rules for a tenant.
func (s *Service) GetRules(ctx context.Context, tenantID uuid.UUID) (pricing.PricingRules, error) {
	return s.rules(ctx, tenantID)
}

// UpdateRules validates and stores a tenant's rules. Malformed rules are
// rejected here rather than normalized.
func (s *Service) UpdateRules(ctx context.Context, tenantID uuid.UUID, rules pricing.PricingRules) (pricing.PricingRules, error) {
	if s.deps.RulesStore == nil {
		return pricing.PricingRules{}, storage.ErrNotConfigured
	}
	rules.TenantID = tenantID
	if err := rules.Validate(); err != nil {
		return pricing.PricingRules{}, err
	}
	if err := s.deps.RulesStore.UpsertRules(ctx, rules); err != nil {
		return pricing.PricingRules{}, fmt.Errorf("store pricing rules: %w", err)
	}
	if s.deps.Rules != nil {
		s.deps.Rules.Invalidate(tenantID)
	}
	s.logger.Info().Str("tenant", tenantID.String()).Msg("pricing rules updated")
	return rules, nil
}

// History returns recent persisted suggestions and alerts for a tenant.
func (s *Service) History(ctx context.Context, tenantID uuid.UUID, limit int) ([]storage.SuggestionRecord, []storage.AlertRecord, error) {
	if s.deps.Suggestions == nil {
		return nil, nil, storage.ErrNotConfigured
	}
	if limit <= 0 {
		limit = 20
	}
	suggestions, err := s.deps.Suggestions.ListRecentSuggestions(ctx, tenantID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("list suggestions: %w", err)
	}
	var alerts []storage.AlertRecord
	if s.deps.Alerts != nil {
		alerts, err = s.deps.Alerts.ListRecentAlerts(ctx, tenantID, limit)
		if err != nil {
			return nil, nil, fmt.Errorf("list alerts: %w", err)
		}
	}
	return suggestions, alerts, nil
}

func (s *Service) resolveAsOf(asOf time.Time) time.Time {
	if asOf.IsZero() {
		return s.now()
	}
	return asOf.UTC()
}
