package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification describes an asking price that drifted away from the suggested mid.
type Notification struct {
	TenantID     uuid.UUID
	VehicleID    uuid.UUID
	StockNumber  string
	Title        string
	AsOf         time.Time
	AskingPrice  decimal.Decimal
	SuggestedMid decimal.Decimal
	Low          decimal.Decimal
	High         decimal.Decimal
	DeviationPct decimal.Decimal
	ThresholdPct decimal.Decimal
	Direction    string
	Rating       string
	DaysOnLot    int
	Channels     []string
	Reasons      []string
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	chatID string
	client *resty.Client
	logger zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	client := resty.New().
		SetBaseURL(fmt.Sprintf("%s/bot%s", strings.TrimRight(baseURL, "/"), botToken)).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &TelegramNotifier{
		chatID: chatID,
		client: client,
		logger: logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id": n.chatID,
			"text":    RenderMessage(note),
		}).
		SetResult(&result).
		SetError(&result).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram unexpected status %d: %s", resp.StatusCode(), result.Description)
	}
	if !result.OK {
		return fmt.Errorf("telegram returned ok=false: %s", result.Description)
	}

	n.logger.Info().
		Str("vehicle", note.VehicleID.String()).
		Str("direction", note.Direction).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("alert sent (telegram)")
	return nil
}

// LogNotifier writes alerts to the log; used when no external channel is set up.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the alert at warn level.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().
		Str("tenant", note.TenantID.String()).
		Str("vehicle", note.VehicleID.String()).
		Str("asking", note.AskingPrice.String()).
		Str("suggested_mid", note.SuggestedMid.String()).
		Str("deviation_pct", note.DeviationPct.StringFixed(2)).
		Str("direction", note.Direction).
		Msg("asking price deviates from market suggestion")
	return nil
}

// Multi fans a notification out to several notifiers and joins their errors.
type Multi []Notifier

// Notify delivers to every notifier even if some fail.
func (m Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RenderMessage formats a notification as plain text.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Price Alert]\n")
	if note.Title != "" {
		builder.WriteString(note.Title)
		if note.StockNumber != "" {
			builder.WriteString(fmt.Sprintf(" (#%s)", note.StockNumber))
		}
		builder.WriteString("\n")
	}
	builder.WriteString(fmt.Sprintf("As of: %s UTC\n", note.AsOf.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Asking: %s NOK\n", note.AskingPrice.StringFixed(0)))
	builder.WriteString(fmt.Sprintf("Suggested: %s NOK (band %s - %s)\n",
		note.SuggestedMid.StringFixed(0), note.Low.StringFixed(0), note.High.StringFixed(0)))
	builder.WriteString(fmt.Sprintf("Deviation: %s%% (threshold %s%%)\n", note.DeviationPct.StringFixed(2), note.ThresholdPct.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Direction: %s\n", note.Direction))
	if note.Rating != "" {
		builder.WriteString(fmt.Sprintf("Saleability: %s\n", note.Rating))
	}
	if note.DaysOnLot > 0 {
		builder.WriteString(fmt.Sprintf("Days on lot: %d\n", note.DaysOnLot))
	}
	for _, r := range note.Reasons {
		builder.WriteString("- " + r + "\n")
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = Multi(nil)
)
