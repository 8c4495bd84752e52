package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// BackfillOptions configure a historical repricing replay.
type BackfillOptions struct {
	TenantID uuid.UUID
	From     time.Time
	To       time.Time
	Step     time.Duration
	DryRun   bool
}

// Backfill reprices a tenant's current inventory as of each step between
// From and To. Alerts are never sent; suggestions are persisted unless DryRun.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	step := opts.Step
	if step <= 0 {
		step = 24 * time.Hour
	}

	start := alignForward(opts.From.UTC(), step)
	end := opts.To.UTC()
	if !start.Before(end) {
		return errors.New("backfill range is empty; check --from/--to")
	}

	cfg := *a.Config
	cfg.Reprice.Persist = !opts.DryRun
	cfg.Alerting.Enabled = false
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: suggestions will not be stored")
	}

	h, err := a.openWith(ctx, &cfg, nil)
	if err != nil {
		return err
	}
	defer h.Close()
	if h.Store == nil {
		return errors.New("database.dsn not configured; cannot backfill")
	}

	processed := 0
	failed := 0
	for at := start; at.Before(end); at = at.Add(step) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		summary, err := h.Service.RepriceAll(ctx, opts.TenantID, at)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Time("as_of", at).Msg("backfill step failed")
			continue
		}
		if summary.Skipped {
			a.Logger.Warn().Time("as_of", at).Msg("backfill step skipped; repricing lock held elsewhere")
			continue
		}
		processed++
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Msg("backfill complete")
	if failed > 0 {
		return errors.New("some backfill steps failed; check the logs")
	}
	return nil
}

func alignForward(t time.Time, interval time.Duration) time.Time {
	truncated := t.Truncate(interval)
	if truncated.Before(t) {
		return truncated.Add(interval)
	}
	return truncated
}
