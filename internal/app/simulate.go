package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dealer-pricing/internal/alerting"
	"dealer-pricing/internal/service"
)

// SimulateAlert pushes a synthetic deviation alert through the configured
// channels, for checking delivery without touching inventory.
func (a *App) SimulateAlert(ctx context.Context, asking, mid decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	deviation, ok := service.DeviationPct(asking, mid)
	if !ok {
		return errors.New("asking and suggested prices must be greater than zero")
	}
	spread := mid.Mul(decimal.NewFromFloat(a.Config.Engine.SingleCompSpreadPct)).Round(0)

	note := alerting.Notification{
		VehicleID:    uuid.Nil,
		Title:        "Simulated vehicle",
		AsOf:         time.Now().UTC(),
		AskingPrice:  asking,
		SuggestedMid: mid,
		Low:          mid.Sub(spread),
		High:         mid.Add(spread),
		DeviationPct: deviation,
		ThresholdPct: decimal.NewFromFloat(a.Config.Alerting.ThresholdPct),
		Direction:    service.ClassifyDeviation(deviation),
		Channels:     a.Config.Alerting.Channels,
		Reasons:      []string{"Simulated alert"},
	}
	return notifier.Notify(ctx, note)
}
