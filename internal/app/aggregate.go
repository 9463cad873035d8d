package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"price-watch/internal/history"
)

// AggregateOptions configure the aggregate command.
type AggregateOptions struct {
	ProductID   string
	Granularity string
	WindowDays  int
}

// Aggregate prints OHLC buckets for a product at the requested granularity.
func (a *App) Aggregate(ctx context.Context, opts AggregateOptions) error {
	granularity, err := history.ParseGranularity(opts.Granularity)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -opts.WindowDays)

	buckets, err := a.newHistory(store).Aggregated(ctx, opts.ProductID, from, to, granularity)
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		fmt.Fprintln(os.Stdout, "no history found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Bucket (UTC)\tOpen\tClose\tMin\tMax\tAvg\tSamples")
	for _, bucket := range buckets {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			bucket.Start.UTC().Format(time.RFC3339),
			formatDecimal(bucket.Open, 2),
			formatDecimal(bucket.Close, 2),
			formatDecimal(bucket.Min, 2),
			formatDecimal(bucket.Max, 2),
			formatDecimal(bucket.Avg, 2),
			bucket.SampleCount,
		)
	}

	return writer.Flush()
}
