package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dealer-pricing/internal/pricing"
)

// SuggestOptions configure a single-vehicle suggestion.
type SuggestOptions struct {
	TenantID  uuid.UUID
	VehicleID uuid.UUID
	AsOf      time.Time
	Persist   bool
}

type suggestOutput struct {
	SuggestionID *uuid.UUID         `json:"suggestion_id,omitempty"`
	AskingPrice  decimal.Decimal    `json:"asking_price"`
	Suggestion   pricing.Suggestion `json:"suggestion"`
}

// Suggest prices one inventory vehicle and prints the suggestion as JSON.
func (a *App) Suggest(ctx context.Context, w io.Writer, opts SuggestOptions) error {
	h, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	sug, rec, err := h.Service.SuggestForVehicle(ctx, opts.TenantID, opts.VehicleID, opts.AsOf)
	if err != nil {
		return err
	}
	out := suggestOutput{AskingPrice: rec.AskingPrice, Suggestion: sug}
	if opts.Persist {
		stored, err := h.Service.PersistSuggestion(ctx, sug)
		if err != nil {
			return err
		}
		out.SuggestionID = &stored.ID
	}
	return writeJSON(w, out)
}

// Quote prices an ad-hoc vehicle profile read from a JSON file ("-" for stdin).
func (a *App) Quote(ctx context.Context, w io.Writer, tenantID uuid.UUID, profilePath string, asOf time.Time) error {
	var profile pricing.VehicleProfile
	if err := readJSON(profilePath, &profile); err != nil {
		return err
	}

	h, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	sug, err := h.Service.SuggestForProfile(ctx, tenantID, profile, asOf)
	if err != nil {
		return err
	}
	return writeJSON(w, sug)
}

// Reprice runs one bulk repricing pass for a tenant and prints the summary.
func (a *App) Reprice(ctx context.Context, w io.Writer, tenantID uuid.UUID, asOf time.Time) error {
	h, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	summary, err := h.Service.RepriceAll(ctx, tenantID, asOf)
	if err != nil {
		return err
	}
	return writeJSON(w, summary)
}

// Apply writes a price back to a vehicle's asking price.
func (a *App) Apply(ctx context.Context, tenantID, vehicleID uuid.UUID, price decimal.Decimal) error {
	h, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	return h.Service.ApplySuggestedPrice(ctx, tenantID, vehicleID, price)
}

// GetRules prints a tenant's effective pricing rules.
func (a *App) GetRules(ctx context.Context, w io.Writer, tenantID uuid.UUID) error {
	h, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	rules, err := h.Service.GetRules(ctx, tenantID)
	if err != nil {
		return err
	}
	return writeJSON(w, rules)
}

// SetRules validates and stores a tenant's rules read from a JSON file.
func (a *App) SetRules(ctx context.Context, w io.Writer, tenantID uuid.UUID, path string) error {
	var rules pricing.PricingRules
	if err := readJSON(path, &rules); err != nil {
		return err
	}

	h, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	saved, err := h.Service.UpdateRules(ctx, tenantID, rules)
	if err != nil {
		return err
	}
	return writeJSON(w, saved)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		r = file
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
