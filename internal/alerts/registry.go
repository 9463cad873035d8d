package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-watch/internal/catalog"
	"price-watch/internal/history"
	"price-watch/internal/storage"
)

// ErrInvalidThreshold indicates a target price outside the valid range.
var ErrInvalidThreshold = errors.New("alerts: invalid threshold")

// UpsertParams describe a customer's threshold watch on a wishlist item.
type UpsertParams struct {
	WatchedItemID string
	ProductID     string
	CustomerID    string
	TargetPrice   decimal.Decimal
	Options       storage.AlertOptions
}

// Registry manages the lifecycle of price alerts. A watched item carries at
// most one active alert; repeated upserts update it in place.
type Registry struct {
	alerts  storage.AlertStore
	source  catalog.PriceSource
	history history.Recorder
	logger  zerolog.Logger
}

// NewRegistry constructs the alert registry.
func NewRegistry(alerts storage.AlertStore, source catalog.PriceSource, recorder history.Recorder, logger zerolog.Logger) *Registry {
	return &Registry{
		alerts:  alerts,
		source:  source,
		history: recorder,
		logger:  logger.With().Str("component", "alert_registry").Logger(),
	}
}

// Upsert validates the threshold against the live catalog price and creates
// or updates the alert for the watched item. The live price is also recorded
// as an observation so the product's history starts at watch time.
func (r *Registry) Upsert(ctx context.Context, params UpsertParams) (storage.PriceAlert, error) {
	if params.WatchedItemID == "" || params.ProductID == "" {
		return storage.PriceAlert{}, errors.New("watched item id and product id required")
	}
	if params.TargetPrice.Sign() <= 0 {
		return storage.PriceAlert{}, fmt.Errorf("%w: target price %s must be positive",
			ErrInvalidThreshold, params.TargetPrice)
	}

	quote, err := r.source.CurrentPrice(ctx, params.ProductID)
	if err != nil {
		return storage.PriceAlert{}, fmt.Errorf("fetch current price: %w", err)
	}

	if params.TargetPrice.GreaterThanOrEqual(quote.Price) {
		return storage.PriceAlert{}, fmt.Errorf("%w: target price %s must be below the current price %s",
			ErrInvalidThreshold, params.TargetPrice, quote.Price)
	}

	alert, err := r.alerts.UpsertAlert(ctx, storage.PriceAlert{
		WatchedItemID: params.WatchedItemID,
		ProductID:     params.ProductID,
		CustomerID:    params.CustomerID,
		TargetPrice:   params.TargetPrice,
		CurrentPrice:  quote.Price,
		CurrencyID:    quote.CurrencyID,
		Options:       params.Options,
	})
	if err != nil {
		return storage.PriceAlert{}, fmt.Errorf("upsert alert: %w", err)
	}

	if err := r.history.Record(ctx, params.ProductID, quote.Price, quote.CurrencyID, "registry"); err != nil {
		// The alert is live; a missing initial observation self-heals on the next cycle.
		r.logger.Error().Err(err).Str("product_id", params.ProductID).Msg("failed to record initial observation")
	}

	r.logger.Info().
		Int64("alert_id", alert.ID).
		Str("watched_item_id", alert.WatchedItemID).
		Str("target", alert.TargetPrice.String()).
		Msg("alert upserted")
	return alert, nil
}

// Deactivate marks the alert for a watched item inactive. Price history for
// the product is kept.
func (r *Registry) Deactivate(ctx context.Context, watchedItemID string) error {
	if err := r.alerts.DeactivateAlert(ctx, watchedItemID); err != nil {
		return err
	}
	r.logger.Info().Str("watched_item_id", watchedItemID).Msg("alert deactivated")
	return nil
}

// Get loads one alert by id. Returns storage.ErrAlertNotFound if absent.
func (r *Registry) Get(ctx context.Context, alertID int64) (storage.PriceAlert, error) {
	return r.alerts.GetAlert(ctx, alertID)
}
