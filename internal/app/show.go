package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"dealer-pricing/internal/storage"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	TenantID uuid.UUID
	Limit    int
}

// Show prints recent persisted suggestions and deviation alerts.
func (a *App) Show(ctx context.Context, w io.Writer, opts ShowOptions) error {
	h, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer h.Close()
	if h.Store == nil {
		return errors.New("database not configured; cannot show suggestions")
	}

	suggestions, alerts, err := h.Service.History(ctx, opts.TenantID, opts.Limit)
	if err != nil {
		return err
	}
	writeHistory(w, suggestions, alerts)
	return nil
}

func writeHistory(w io.Writer, suggestions []storage.SuggestionRecord, alerts []storage.AlertRecord) {
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "no suggestions found")
	} else {
		writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Created (UTC)\tVehicle\tStatus\tLow\tMid\tHigh\tP30\tRating\tComps\tReasons")
		for _, rec := range suggestions {
			s := rec.Suggestion
			codes := make([]string, 0, len(s.Reasons))
			for _, r := range s.Reasons {
				codes = append(codes, r.Code)
			}
			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%d\t%s\n",
				rec.CreatedAt.UTC().Format(time.RFC3339),
				rec.VehicleID,
				s.Status,
				s.Bands.Low.StringFixed(0),
				s.Recommended().StringFixed(0),
				s.Bands.High.StringFixed(0),
				s.Saleability.Prob30,
				s.Saleability.Rating,
				len(s.SampleComps),
				sanitizeInline(strings.Join(codes, ",")),
			)
		}
		writer.Flush()
	}

	if len(alerts) == 0 {
		return
	}
	fmt.Fprintln(w)
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Alerted (UTC)\tVehicle\tAsking\tSuggested\tDeviation%\tDirection\tChannels")
	for _, al := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			al.CreatedAt.UTC().Format(time.RFC3339),
			al.VehicleID,
			al.AskingPrice.StringFixed(0),
			al.SuggestedMid.StringFixed(0),
			al.DeviationPct.StringFixed(2),
			al.Direction,
			strings.Join(al.Channels, ","),
		)
	}
	writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
