package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"dealer-pricing/internal/pricing"
	"dealer-pricing/internal/storage"
)

// ExportOptions hold parameters for exporting a vehicle's pricing evidence.
type ExportOptions struct {
	TenantID       uuid.UUID
	VehicleID      uuid.UUID
	AsOf           time.Time
	CSVPath        string
	PNGPath        string
	MaxComparables int
	Upload         bool
}

// Export prices one vehicle and renders its comparables and bands as CSV
// and/or PNG, optionally uploading the files to S3.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	opts.MaxComparables = a.Config.ResolveMaxComparables(opts.MaxComparables)

	h, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	sug, rec, err := h.Service.SuggestForVehicle(ctx, opts.TenantID, opts.VehicleID, opts.AsOf)
	if err != nil {
		return err
	}

	comps := limitComparables(sug.SampleComps, opts.MaxComparables)
	a.Logger.Info().
		Str("vehicle", rec.ID.String()).
		Int("total", len(sug.SampleComps)).
		Int("exported", len(comps)).
		Msg("exporting pricing evidence")

	var written []string
	if opts.CSVPath != "" {
		if err := writeFile(opts.CSVPath, func(w io.Writer) error { return writeComparablesCSV(w, comps) }); err != nil {
			return err
		}
		written = append(written, opts.CSVPath)
	}
	if opts.PNGPath != "" {
		if err := writeFile(opts.PNGPath, func(w io.Writer) error { return renderBandsPNG(w, rec, sug, comps) }); err != nil {
			return err
		}
		written = append(written, opts.PNGPath)
	}

	if !opts.Upload {
		return nil
	}
	uploader, err := a.newUploader(ctx)
	if err != nil {
		return err
	}
	prefix := fmt.Sprintf("%s/%s/%s", opts.TenantID, opts.VehicleID, sug.AsOf.UTC().Format("20060102T150405Z"))
	for _, path := range written {
		key, err := uploader.UploadFile(ctx, path, prefix)
		if err != nil {
			return err
		}
		a.Logger.Info().Str("file", path).Str("key", key).Msg("export uploaded")
	}
	return nil
}

func limitComparables(comps []pricing.SampleComp, max int) []pricing.SampleComp {
	if max <= 0 || len(comps) <= max {
		return comps
	}
	return comps[:max]
}

func writeFile(path string, render func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func writeComparablesCSV(w io.Writer, comps []pricing.SampleComp) error {
	writer := csv.NewWriter(w)

	header := []string{"listing_id", "source", "regnr", "year", "km", "location", "listed_at", "age_days", "price", "adjusted_price", "discount", "weight", "year_delta", "mileage_delta"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, c := range comps {
		record := []string{
			strconv.FormatInt(c.ListingID, 10),
			c.Source,
			c.RegNr,
			strconv.Itoa(c.ModelYear),
			strconv.Itoa(c.MileageKm),
			c.Location,
			c.ListedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(c.AgeDays),
			c.Price.String(),
			c.AdjustedPrice.String(),
			strconv.FormatFloat(c.Discount, 'f', 4, 64),
			strconv.FormatFloat(c.Weight, 'f', 4, 64),
			strconv.Itoa(c.Features.YearDelta),
			strconv.FormatFloat(c.Features.MileageDelta, 'f', 4, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// renderBandsPNG plots comparable prices against mileage with the suggested
// band as horizontal lines and the subject vehicle as a single point.
func renderBandsPNG(w io.Writer, rec storage.VehicleRecord, sug pricing.Suggestion, comps []pricing.SampleComp) error {
	km := make([]float64, 0, len(comps))
	adjusted := make([]float64, 0, len(comps))
	minX, maxX := float64(rec.MileageKm), float64(rec.MileageKm)
	for _, c := range comps {
		x := float64(c.MileageKm)
		km = append(km, x)
		adjusted = append(adjusted, c.AdjustedPrice.InexactFloat64())
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
	}
	if maxX-minX < 2000 {
		minX -= 1000
		maxX += 1000
	}

	line := func(name string, d decimal.Decimal, color drawing.Color, dashed bool) chart.Series {
		style := chart.Style{StrokeColor: color, StrokeWidth: 2}
		if dashed {
			style.StrokeDashArray = []float64{6, 4}
		}
		return chart.ContinuousSeries{
			Name:    name,
			Style:   style,
			XValues: []float64{minX, maxX},
			YValues: []float64{d.InexactFloat64(), d.InexactFloat64()},
		}
	}

	series := []chart.Series{
		line("Low", sug.Bands.Low, chart.ColorAlternateGray, true),
		line("Suggested", sug.Bands.Mid, chart.ColorBlue, false),
		line("High", sug.Bands.High, chart.ColorAlternateGray, true),
	}
	if len(comps) > 0 {
		series = append(series, chart.ContinuousSeries{
			Name:    "Comparables (adjusted)",
			Style:   chart.Style{StrokeWidth: chart.Disabled, DotWidth: 4, DotColor: chart.ColorGreen},
			XValues: km,
			YValues: adjusted,
		})
	}
	if rec.AskingPrice.IsPositive() {
		series = append(series, chart.ContinuousSeries{
			Name:    "Asking",
			Style:   chart.Style{StrokeWidth: chart.Disabled, DotWidth: 7, DotColor: chart.ColorRed},
			XValues: []float64{float64(rec.MileageKm)},
			YValues: []float64{rec.AskingPrice.InexactFloat64()},
		})
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Title:  fmt.Sprintf("%d %s %s (%s)", rec.ModelYear, rec.Make, rec.Model, sug.Status),
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name:           "Mileage (km)",
			ValueFormatter: priceFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (NOK)",
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
