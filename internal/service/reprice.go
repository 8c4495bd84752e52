package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"dealer-pricing/internal/alerting"
	"dealer-pricing/internal/pricing"
	"dealer-pricing/internal/storage"
)

// Deviation directions.
const (
	DirectionAbove = "above"
	DirectionBelow = "below"
	DirectionFlat  = "flat"
)

var hundred = decimal.NewFromInt(100)

// Summary reports the outcome of one bulk repricing run.
type Summary struct {
	TenantID  uuid.UUID     `json:"tenant_id"`
	AsOf      time.Time     `json:"as_of"`
	Skipped   bool          `json:"skipped"`
	Vehicles  int           `json:"vehicles"`
	Suggested int           `json:"suggested"`
	Fallbacks int           `json:"fallbacks"`
	Persisted int           `json:"persisted"`
	Failed    int           `json:"failed"`
	Alerts    int           `json:"alerts"`
	Duration  time.Duration `json:"duration"`
}

type counters struct {
	vehicles, suggested, fallbacks, persisted, failed, alerts atomic.Int64
}

// RepriceAll suggests prices for every in-stock vehicle of a tenant. Only one
// bulk run proceeds at a time across instances; a run that cannot take the
// lock returns a skipped summary.
func (s *Service) RepriceAll(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (Summary, error) {
	asOf = s.resolveAsOf(asOf)
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return Summary{}, err
	}
	if !proceed {
		s.logger.Debug().Str("tenant", tenantID.String()).Msg("skip repricing because advisory lock held elsewhere")
		return Summary{TenantID: tenantID, AsOf: asOf, Skipped: true}, nil
	}
	if unlock != nil {
		defer unlock()
	}
	return s.repriceTenant(ctx, tenantID, asOf)
}

// Tick runs one scheduled repricing pass over every configured or active tenant.
func (s *Service) Tick(ctx context.Context, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("at", at).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	tenants, err := s.tenantsToReprice(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, tenantID := range tenants {
		if _, err := s.repriceTenant(ctx, tenantID, at); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
		}
	}

	if s.deps.Alerts != nil && s.retention > 0 {
		if err := s.deps.Alerts.DeleteAlertsBefore(ctx, at.Add(-s.retention)); err != nil {
			s.logger.Error().Err(err).Msg("failed to prune old alerts")
		}
	}
	return errors.Join(errs...)
}

func (s *Service) tenantsToReprice(ctx context.Context) ([]uuid.UUID, error) {
	if len(s.tenants) > 0 {
		return s.tenants, nil
	}
	if s.deps.Vehicles == nil {
		return nil, storage.ErrNotConfigured
	}
	tenants, err := s.deps.Vehicles.ListActiveTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

func (s *Service) repriceTenant(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (Summary, error) {
	if s.deps.Vehicles == nil {
		return Summary{}, storage.ErrNotConfigured
	}
	started := time.Now()

	// Warm the rules cache once so workers do not race on the first load.
	rules, err := s.rules(ctx, tenantID)
	if err != nil {
		return Summary{}, err
	}

	var c counters
	after := uuid.Nil
	for {
		page, err := s.deps.Vehicles.ListInStockVehicles(ctx, tenantID, after, s.pageSize)
		if err != nil {
			return Summary{}, fmt.Errorf("list inventory: %w", err)
		}
		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for _, rec := range page {
			rec := rec // per-iteration copy; go.mod targets go1.21 loop semantics
			g.Go(func() error {
				s.repriceVehicle(gctx, rec, rules, asOf, &c)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Summary{}, err
		}
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}

		after = page[len(page)-1].ID
		if len(page) < s.pageSize {
			break
		}
	}

	summary := Summary{
		TenantID:  tenantID,
		AsOf:      asOf,
		Vehicles:  int(c.vehicles.Load()),
		Suggested: int(c.suggested.Load()),
		Fallbacks: int(c.fallbacks.Load()),
		Persisted: int(c.persisted.Load()),
		Failed:    int(c.failed.Load()),
		Alerts:    int(c.alerts.Load()),
		Duration:  time.Since(started),
	}
	s.logger.Info().
		Str("tenant", tenantID.String()).
		Int("vehicles", summary.Vehicles).
		Int("suggested", summary.Suggested).
		Int("fallbacks", summary.Fallbacks).
		Int("failed", summary.Failed).
		Int("alerts", summary.Alerts).
		Dur("duration", summary.Duration).
		Msg("repricing complete")
	return summary, nil
}

// repriceVehicle handles one vehicle. Failures are counted and logged so one
// bad record does not abort the batch.
func (s *Service) repriceVehicle(ctx context.Context, rec storage.VehicleRecord, rules pricing.PricingRules, asOf time.Time, c *counters) {
	c.vehicles.Add(1)
	if s.vehicleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.vehicleTimeout)
		defer cancel()
	}

	log := s.logger.With().Str("tenant", rec.TenantID.String()).Str("vehicle", rec.ID.String()).Logger()

	profile := rec.Profile(asOf)
	comps, err := s.loadComparables(ctx, profile)
	if err != nil {
		c.failed.Add(1)
		log.Error().Err(err).Msg("failed to load comparables")
		return
	}
	sug, err := s.deps.Engine.Suggest(pricing.Request{Vehicle: profile, Comparables: comps, Rules: rules, AsOf: asOf})
	if err != nil {
		c.failed.Add(1)
		if errors.Is(err, pricing.ErrInvariantViolation) {
			log.Error().Err(err).Msg("engine produced an invalid suggestion")
		} else {
			log.Warn().Err(err).Msg("vehicle could not be priced")
		}
		return
	}
	c.suggested.Add(1)
	if sug.Status == pricing.StatusCostPlusFallback {
		c.fallbacks.Add(1)
	}

	var suggestionID *uuid.UUID
	if s.persist && s.deps.Suggestions != nil {
		stored, err := s.PersistSuggestion(ctx, sug)
		if err != nil {
			log.Error().Err(err).Msg("failed to persist suggestion")
		} else {
			c.persisted.Add(1)
			suggestionID = &stored.ID
		}
	}

	if s.maybeAlert(ctx, rec, sug, suggestionID, asOf) {
		c.alerts.Add(1)
	}
}

// maybeAlert notifies when the asking price sits at least threshold percent
// away from the suggested mid. It reports whether an alert went out.
func (s *Service) maybeAlert(ctx context.Context, rec storage.VehicleRecord, sug pricing.Suggestion, suggestionID *uuid.UUID, asOf time.Time) bool {
	if !s.alertsOn || s.deps.Notifier == nil || s.threshold.IsZero() {
		return false
	}
	deviation, ok := DeviationPct(rec.AskingPrice, sug.Recommended())
	if !ok || deviation.Abs().LessThan(s.threshold) {
		return false
	}

	log := s.logger.With().Str("vehicle", rec.ID.String()).Logger()

	if s.deps.Alerts != nil && s.cooldown > 0 {
		last, err := s.deps.Alerts.LastAlertForVehicle(ctx, rec.TenantID, rec.ID)
		switch {
		case err == nil && last.CreatedAt.After(asOf.Add(-s.cooldown)):
			log.Debug().Time("last_alert", last.CreatedAt).Msg("alert suppressed by cooldown")
			return false
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			log.Error().Err(err).Msg("failed to read last alert")
		}
	}

	direction := ClassifyDeviation(deviation)
	if s.deps.Alerts != nil {
		record := storage.AlertRecord{
			TenantID:     rec.TenantID,
			VehicleID:    rec.ID,
			SuggestionID: suggestionID,
			AskingPrice:  rec.AskingPrice,
			SuggestedMid: sug.Recommended(),
			DeviationPct: deviation,
			ThresholdPct: s.threshold,
			Direction:    direction,
			Channels:     s.channels,
		}
		if _, err := s.deps.Alerts.InsertAlert(ctx, record); err != nil {
			log.Error().Err(err).Msg("failed to persist alert record")
		}
	}

	reasons := make([]string, 0, len(sug.Reasons))
	for _, r := range sug.Reasons {
		reasons = append(reasons, r.Message)
	}
	note := alerting.Notification{
		TenantID:     rec.TenantID,
		VehicleID:    rec.ID,
		StockNumber:  rec.StockNumber,
		Title:        fmt.Sprintf("%d %s %s", rec.ModelYear, rec.Make, rec.Model),
		AsOf:         asOf,
		AskingPrice:  rec.AskingPrice,
		SuggestedMid: sug.Recommended(),
		Low:          sug.Bands.Low,
		High:         sug.Bands.High,
		DeviationPct: deviation,
		ThresholdPct: s.threshold,
		Direction:    direction,
		Rating:       string(sug.Saleability.Rating),
		DaysOnLot:    pricing.AgeInDays(rec.StockedAt, asOf),
		Channels:     s.channels,
		Reasons:      reasons,
	}
	if err := s.deps.Notifier.Notify(ctx, note); err != nil {
		log.Error().Err(err).Msg("failed to dispatch alert")
	}
	return true
}

// DeviationPct returns (asking - mid) / mid * 100. It reports false when
// either price is missing.
func DeviationPct(asking, mid decimal.Decimal) (decimal.Decimal, bool) {
	if !asking.IsPositive() || !mid.IsPositive() {
		return decimal.Zero, false
	}
	return asking.Sub(mid).Div(mid).Mul(hundred).Round(4), true
}

// ClassifyDeviation names the direction of a deviation.
func ClassifyDeviation(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return DirectionAbove
	case -1:
		return DirectionBelow
	default:
		return DirectionFlat
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.deps.Locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.deps.Locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
