package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"price-watch/internal/storage"
)

// Export renders a product's price history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.AddDate(0, 0, -a.Config.Compaction.RetentionDays)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	observations, err := store.ListObservationsBetween(ctx, opts.ProductID, from, to)
	if err != nil {
		return err
	}
	summaries, err := store.ListSummariesBetween(ctx, opts.ProductID, from.Truncate(24*time.Hour), to)
	if err != nil {
		return err
	}
	if len(observations) == 0 && len(summaries) == 0 {
		a.Logger.Info().Str("product_id", opts.ProductID).Msg("no history found for export window")
		return nil
	}

	downsampled := downsampleObservations(observations, opts.MaxPoints)
	a.Logger.Info().
		Int("raw", len(observations)).
		Int("exported", len(downsampled)).
		Int("summaries", len(summaries)).
		Msg("exporting price history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, downsampled, summaries); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, downsampled, summaries); err != nil {
			return err
		}
	}

	return nil
}

func downsampleObservations(observations []storage.PriceObservation, max int) []storage.PriceObservation {
	if max <= 0 || len(observations) <= max {
		return observations
	}

	result := make([]storage.PriceObservation, 0, max)
	step := float64(len(observations)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(observations) {
			idx = len(observations) - 1
		}
		result = append(result, observations[idx])
	}
	return result
}

func writeHistoryCSV(path string, observations []storage.PriceObservation, summaries []storage.PriceDailySummary) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"kind", "at", "price", "open", "close", "min", "max", "avg", "samples", "currency", "source"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, summary := range summaries {
		record := []string{
			"daily_summary",
			summary.Day.UTC().Format(time.RFC3339),
			"",
			summary.Open.String(),
			summary.Close.String(),
			summary.Min.String(),
			summary.Max.String(),
			summary.Avg.String(),
			strconv.Itoa(summary.SampleCount),
			summary.CurrencyID,
			"",
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	for _, obs := range observations {
		record := []string{
			"observation",
			obs.RecordedAt.UTC().Format(time.RFC3339),
			obs.Price.String(),
			"", "", "", "", "", "",
			obs.CurrencyID,
			obs.Source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeHistoryPNG(path string, observations []storage.PriceObservation, summaries []storage.PriceDailySummary) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
	}

	if len(observations) > 0 {
		x := make([]time.Time, len(observations))
		y := make([]float64, len(observations))
		for i, obs := range observations {
			x[i] = obs.RecordedAt
			y[i] = obs.Price.InexactFloat64()
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    "Price",
			XValues: x,
			YValues: y,
		})
	}

	if len(summaries) > 0 {
		x := make([]time.Time, len(summaries))
		minY := make([]float64, len(summaries))
		maxY := make([]float64, len(summaries))
		for i, summary := range summaries {
			x[i] = summary.Day
			minY[i] = summary.Min.InexactFloat64()
			maxY[i] = summary.Max.InexactFloat64()
		}
		graph.Series = append(graph.Series,
			chart.TimeSeries{
				Name:    "Daily min",
				XValues: x,
				YValues: minY,
			},
			chart.TimeSeries{
				Name:    "Daily max",
				XValues: x,
				YValues: maxY,
			},
		)
	}

	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
