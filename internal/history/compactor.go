package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-watch/internal/storage"
)

// DefaultRetentionDays is the age at which raw observations become eligible
// for compaction into daily summaries.
const DefaultRetentionDays = 30

// CompactionReport summarises one compaction pass.
type CompactionReport struct {
	Days      int
	Compacted int
	Conflicts int
	Failed    int
}

// Compactor rolls raw observations older than the retention window into
// immutable daily summaries. One product-day is one atomic unit; a failed
// unit stays raw and is retried on the next pass.
type Compactor struct {
	observations storage.ObservationStore
	summaries    storage.SummaryStore
	logger       zerolog.Logger
}

// NewCompactor constructs a history compactor.
func NewCompactor(observations storage.ObservationStore, summaries storage.SummaryStore, logger zerolog.Logger) *Compactor {
	return &Compactor{
		observations: observations,
		summaries:    summaries,
		logger:       logger.With().Str("component", "compactor").Logger(),
	}
}

// Compact processes every product-day whose raw observations are entirely
// older than the retention window. Already-compacted days no longer hold raw
// rows, so re-running after a partial failure only touches the remainder.
func (c *Compactor) Compact(ctx context.Context, retentionDays int) (CompactionReport, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	// Cut at a day boundary so a partially-elapsed day is never compacted.
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Truncate(24 * time.Hour)

	days, err := c.observations.ListCompactableDays(ctx, cutoff)
	if err != nil {
		return CompactionReport{}, fmt.Errorf("list compactable days: %w", err)
	}

	report := CompactionReport{Days: len(days)}
	for _, unit := range days {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err := c.compactUnit(ctx, unit); err != nil {
			if errors.Is(err, storage.ErrSummaryExists) {
				report.Conflicts++
				c.logger.Error().
					Str("product_id", unit.ProductID).
					Time("day", unit.Day).
					Msg("summary already exists for product-day; refusing to overwrite")
				continue
			}
			report.Failed++
			c.logger.Error().Err(err).
				Str("product_id", unit.ProductID).
				Time("day", unit.Day).
				Msg("compaction unit failed; will retry next pass")
			continue
		}
		report.Compacted++
	}

	c.logger.Info().
		Int("days", report.Days).
		Int("compacted", report.Compacted).
		Int("conflicts", report.Conflicts).
		Int("failed", report.Failed).
		Msg("compaction pass finished")
	return report, nil
}

func (c *Compactor) compactUnit(ctx context.Context, unit storage.ProductDay) error {
	dayStart := unit.Day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	observations, err := c.observations.ListObservationsBetween(ctx, unit.ProductID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("load day observations: %w", err)
	}
	if len(observations) == 0 {
		return nil
	}

	summary := summariseDay(unit.ProductID, dayStart, observations)
	return c.summaries.CompactProductDay(ctx, summary)
}

// summariseDay computes the OHLC record for one day of chronological samples.
func summariseDay(productID string, day time.Time, observations []storage.PriceObservation) storage.PriceDailySummary {
	first := observations[0]

	summary := storage.PriceDailySummary{
		ProductID:   productID,
		Day:         day,
		Open:        first.Price,
		Close:       observations[len(observations)-1].Price,
		Min:         first.Price,
		Max:         first.Price,
		SampleCount: len(observations),
		CurrencyID:  first.CurrencyID,
	}

	sum := decimal.Zero
	for _, obs := range observations {
		if obs.Price.LessThan(summary.Min) {
			summary.Min = obs.Price
		}
		if obs.Price.GreaterThan(summary.Max) {
			summary.Max = obs.Price
		}
		sum = sum.Add(obs.Price)
	}
	summary.Avg = sum.Div(decimal.NewFromInt(int64(len(observations))))

	return summary
}
