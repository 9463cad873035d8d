package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"price-watch/internal/alerts"
	"price-watch/internal/catalog"
	"price-watch/internal/cooldown"
)

// Simulate drives one evaluation of a stored alert against a fixed price,
// exercising the full trigger path without waiting for a catalog change.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.Price.Sign() <= 0 {
		return errors.New("--price must be greater than 0")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alert, err := store.GetAlert(ctx, opts.AlertID)
	if err != nil {
		return err
	}

	source := &staticPriceSource{price: opts.Price, currencyID: alert.CurrencyID}

	// The cooldown is bypassed so a simulation always exercises delivery.
	evaluator := alerts.NewEvaluator(store, a.newHistory(store), source, allowAllGate{}, a.newDispatcher(), alerts.Options{
		Epsilon:   a.epsilon(),
		BatchSize: a.Config.Monitor.BatchSize,
	}, a.Logger)

	outcome, err := evaluator.EvaluateAlert(ctx, alert)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "alert %d evaluated at price %s: %s\n",
		alert.ID, opts.Price.StringFixed(2), outcomeLabel(outcome))
	return nil
}

func outcomeLabel(outcome alerts.Outcome) string {
	switch outcome {
	case alerts.OutcomeUnchanged:
		return "unchanged (within epsilon)"
	case alerts.OutcomeChecked:
		return "checked (no trigger)"
	case alerts.OutcomeSuppressed:
		return "suppressed (cooldown live)"
	case alerts.OutcomeNotified:
		return "notified"
	case alerts.OutcomeUnavailable:
		return "skipped (price unavailable)"
	default:
		return "unknown"
	}
}

type staticPriceSource struct {
	price      decimal.Decimal
	currencyID string
}

func (s *staticPriceSource) CurrentPrice(ctx context.Context, productID string) (catalog.PriceQuote, error) {
	return catalog.PriceQuote{Price: s.price, CurrencyID: s.currencyID}, nil
}

type allowAllGate struct{}

func (allowAllGate) TryReserve(ctx context.Context, alertID int64, price decimal.Decimal) (bool, error) {
	return true, nil
}

var _ catalog.PriceSource = (*staticPriceSource)(nil)
var _ cooldown.Gate = allowAllGate{}
