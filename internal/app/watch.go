package app

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"price-watch/internal/alerts"
	"price-watch/internal/storage"
)

// WatchOptions configure the watch command.
type WatchOptions struct {
	WatchedItemID string
	ProductID     string
	CustomerID    string
	TargetPrice   decimal.Decimal
	NotifyOnDrop  bool
}

// Watch creates or updates the price alert for a watched item.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := alerts.NewRegistry(store, a.newCatalog(), a.newHistory(store), a.Logger)
	alert, err := registry.Upsert(ctx, alerts.UpsertParams{
		WatchedItemID: opts.WatchedItemID,
		ProductID:     opts.ProductID,
		CustomerID:    opts.CustomerID,
		TargetPrice:   opts.TargetPrice,
		Options:       storage.AlertOptions{NotifyOnAnyDrop: opts.NotifyOnDrop},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "alert %d active: notify when %s drops to %s (now %s)\n",
		alert.ID, alert.ProductID, alert.TargetPrice.StringFixed(2), alert.CurrentPrice.StringFixed(2))
	return nil
}

// Unwatch deactivates the alert for a watched item.
func (a *App) Unwatch(ctx context.Context, watchedItemID string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := alerts.NewRegistry(store, a.newCatalog(), a.newHistory(store), a.Logger)
	if err := registry.Deactivate(ctx, watchedItemID); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "alert for item %s deactivated\n", watchedItemID)
	return nil
}
