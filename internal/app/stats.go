package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"price-watch/internal/stats"
)

// Stats prints the windowed statistics report for a product.
func (a *App) Stats(ctx context.Context, opts StatsOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := stats.NewEngine(a.newHistory(store), a.Logger)
	report, err := engine.Stats(ctx, opts.ProductID, opts.WindowDays)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Product\t%s\n", report.ProductID)
	fmt.Fprintf(writer, "Window (days)\t%d\n", report.WindowDays)
	fmt.Fprintf(writer, "Samples\t%d\n", report.SampleCount)
	fmt.Fprintf(writer, "Current\t%s\n", formatDecimal(report.Current, 2))
	fmt.Fprintf(writer, "Min\t%s\n", formatDecimal(report.Min, 2))
	fmt.Fprintf(writer, "Max\t%s\n", formatDecimal(report.Max, 2))
	fmt.Fprintf(writer, "Avg\t%s\n", formatDecimal(report.Avg, 2))
	fmt.Fprintf(writer, "Trend\t%s\n", report.Trend)
	fmt.Fprintf(writer, "Volatility\t%.2f%%\n", report.VolatilityPct)
	fmt.Fprintf(writer, "Price drops\t%d\n", report.PriceDropCount)
	return writer.Flush()
}

// Predict prints the least-squares forecast for a product.
func (a *App) Predict(ctx context.Context, opts PredictOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := stats.NewEngine(a.newHistory(store), a.Logger)
	forecast, err := engine.Predict(ctx, opts.ProductID, opts.DaysAhead)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Product\t%s\n", forecast.ProductID)
	fmt.Fprintf(writer, "Days ahead\t%d\n", forecast.DaysAhead)
	fmt.Fprintf(writer, "Method\t%s\n", forecast.Method)
	fmt.Fprintf(writer, "Samples\t%d\n", forecast.SampleCount)
	if forecast.Prediction != nil {
		fmt.Fprintf(writer, "Prediction\t%s\n", formatDecimal(*forecast.Prediction, 2))
		fmt.Fprintf(writer, "Confidence\t%.1f%%\n", forecast.ConfidencePct)
		fmt.Fprintf(writer, "Trend\t%s\n", forecast.Trend)
		fmt.Fprintf(writer, "Daily change\t%+.4f\n", forecast.DailyChange)
	} else {
		fmt.Fprintln(writer, "Prediction\tn/a (not enough samples)")
	}
	return writer.Flush()
}
