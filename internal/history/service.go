package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-watch/internal/storage"
)

// Recorder appends price observations to the history.
type Recorder interface {
	Record(ctx context.Context, productID string, price decimal.Decimal, currencyID, source string) error
}

// Service is the read/write surface of the price history. Writes are
// de-noised: a sample within epsilon of the latest stored price is dropped.
type Service struct {
	observations storage.ObservationStore
	summaries    storage.SummaryStore
	epsilon      decimal.Decimal
	logger       zerolog.Logger
}

// NewService wires the history service over the observation and summary stores.
func NewService(observations storage.ObservationStore, summaries storage.SummaryStore, epsilon decimal.Decimal, logger zerolog.Logger) *Service {
	if epsilon.Sign() < 0 {
		epsilon = decimal.Zero
	}
	return &Service{
		observations: observations,
		summaries:    summaries,
		epsilon:      epsilon,
		logger:       logger.With().Str("component", "history").Logger(),
	}
}

// Record stores one price sample unless it is within epsilon of the most
// recent stored price for the product.
func (s *Service) Record(ctx context.Context, productID string, price decimal.Decimal, currencyID, source string) error {
	latest, exists, err := s.observations.LatestObservation(ctx, productID)
	if err != nil {
		return fmt.Errorf("load latest observation: %w", err)
	}
	if exists && price.Sub(latest.Price).Abs().LessThan(s.epsilon) {
		s.logger.Debug().
			Str("product_id", productID).
			Str("price", price.String()).
			Str("last_price", latest.Price.String()).
			Msg("observation within epsilon; not stored")
		return nil
	}

	obs := storage.PriceObservation{
		ProductID:  productID,
		Price:      price,
		CurrencyID: currencyID,
		Source:     source,
		RecordedAt: time.Now().UTC(),
	}
	if err := s.observations.InsertObservation(ctx, obs); err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// RawSeries returns chronological raw observations in [from, to).
func (s *Service) RawSeries(ctx context.Context, productID string, from, to time.Time) ([]storage.PriceObservation, error) {
	return s.observations.ListObservationsBetween(ctx, productID, from, to)
}

// Summaries returns compacted daily summaries with day in [from, to).
func (s *Service) Summaries(ctx context.Context, productID string, from, to time.Time) ([]storage.PriceDailySummary, error) {
	return s.summaries.ListSummariesBetween(ctx, productID, from, to)
}

// Recent returns the newest raw observations, newest first.
func (s *Service) Recent(ctx context.Context, productID string, limit int) ([]storage.PriceObservation, error) {
	return s.observations.ListRecentObservations(ctx, productID, limit)
}

// Aggregated buckets the history of [from, to) at the requested granularity.
// Compacted days contribute their stored OHLC record; raw samples are bucketed
// on the fly with the same formula compaction uses.
func (s *Service) Aggregated(ctx context.Context, productID string, from, to time.Time, granularity Granularity) ([]Bucket, error) {
	dayFrom := from.UTC().Truncate(24 * time.Hour)

	summaries, err := s.summaries.ListSummariesBetween(ctx, productID, dayFrom, to)
	if err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}
	observations, err := s.observations.ListObservationsBetween(ctx, productID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}

	fragments := make([]fragment, 0, len(summaries)+len(observations))
	for _, summary := range summaries {
		fragments = append(fragments, summaryFragment(summary))
	}
	for _, obs := range observations {
		fragments = append(fragments, observationFragment(obs))
	}

	return mergeFragments(fragments, granularity), nil
}

var _ Recorder = (*Service)(nil)
