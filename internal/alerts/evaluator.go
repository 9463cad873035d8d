package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-watch/internal/alerting"
	"price-watch/internal/catalog"
	"price-watch/internal/cooldown"
	"price-watch/internal/history"
	"price-watch/internal/storage"
)

// Outcome classifies one alert evaluation.
type Outcome int

const (
	// OutcomeUnchanged means the price moved less than epsilon; nothing written.
	OutcomeUnchanged Outcome = iota
	// OutcomeChecked means state was updated but no trigger applied.
	OutcomeChecked
	// OutcomeSuppressed means a trigger applied but the cooldown was live.
	OutcomeSuppressed
	// OutcomeNotified means a notification descriptor was emitted.
	OutcomeNotified
	// OutcomeUnavailable means the price source had no answer this cycle.
	OutcomeUnavailable
)

// CycleReport counts per-alert outcomes of one evaluation cycle.
type CycleReport struct {
	Alerts      int
	Unchanged   int
	Checked     int
	Triggered   int
	Notified    int
	Suppressed  int
	Unavailable int
	Failed      int
}

// Options tune the evaluator.
type Options struct {
	Epsilon      decimal.Decimal
	BatchSize    int
	PriceTimeout time.Duration
}

// Guard against a keyset scan that never drains, e.g. when rows are inserted
// faster than the scan advances.
const maxCyclePages = 10000

// Evaluator runs the periodic batch check over all active alerts.
type Evaluator struct {
	alerts     storage.AlertStore
	history    history.Recorder
	source     catalog.PriceSource
	gate       cooldown.Gate
	dispatcher alerting.Dispatcher
	opts       Options
	logger     zerolog.Logger
}

// NewEvaluator constructs the batch evaluator. dispatcher may be nil, in
// which case descriptors are logged instead of delivered.
func NewEvaluator(alerts storage.AlertStore, recorder history.Recorder, source catalog.PriceSource, gate cooldown.Gate, dispatcher alerting.Dispatcher, opts Options, logger zerolog.Logger) *Evaluator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Epsilon.Sign() < 0 {
		opts.Epsilon = decimal.Zero
	}
	return &Evaluator{
		alerts:     alerts,
		history:    recorder,
		source:     source,
		gate:       gate,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger.With().Str("component", "alert_evaluator").Logger(),
	}
}

// RunCycle pages through all active alerts and evaluates each one. Per-alert
// failures are counted and never abort the remaining batch. Pagination is
// keyset-based on the alert id, so a total count that is an exact multiple of
// the batch size terminates with one extra empty page rather than looping.
func (e *Evaluator) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	var afterID int64

	for page := 0; page < maxCyclePages; page++ {
		batch, err := e.alerts.ListActiveAlerts(ctx, afterID, e.opts.BatchSize)
		if err != nil {
			return report, fmt.Errorf("list active alerts: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, alert := range batch {
			afterID = alert.ID
			report.Alerts++

			outcome, err := e.safeEvaluate(ctx, alert)
			if err != nil {
				report.Failed++
				e.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("alert evaluation failed")
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				continue
			}

			switch outcome {
			case OutcomeUnchanged:
				report.Unchanged++
			case OutcomeChecked:
				report.Checked++
			case OutcomeSuppressed:
				report.Triggered++
				report.Suppressed++
			case OutcomeNotified:
				report.Triggered++
				report.Notified++
			case OutcomeUnavailable:
				report.Unavailable++
			}
		}

		if len(batch) < e.opts.BatchSize {
			break
		}
	}

	e.logger.Info().
		Int("alerts", report.Alerts).
		Int("unchanged", report.Unchanged).
		Int("notified", report.Notified).
		Int("suppressed", report.Suppressed).
		Int("unavailable", report.Unavailable).
		Int("failed", report.Failed).
		Msg("evaluation cycle finished")
	return report, nil
}

// safeEvaluate isolates panics from a single alert so they count as that
// alert's failure instead of killing the cycle.
func (e *Evaluator) safeEvaluate(ctx context.Context, alert storage.PriceAlert) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluate alert %d: panic: %v", alert.ID, r)
		}
	}()
	return e.EvaluateAlert(ctx, alert)
}

// EvaluateAlert runs one alert through a full check: price fetch, epsilon
// fast path, observation write, snapshot update, trigger decision, cooldown
// reservation, and descriptor emission.
func (e *Evaluator) EvaluateAlert(ctx context.Context, alert storage.PriceAlert) (Outcome, error) {
	quote, err := e.fetchPrice(ctx, alert.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrPriceUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			e.logger.Warn().Err(err).
				Int64("alert_id", alert.ID).
				Str("product_id", alert.ProductID).
				Msg("price unavailable; alert skipped this cycle")
			return OutcomeUnavailable, nil
		}
		return 0, fmt.Errorf("fetch price: %w", err)
	}

	current := quote.Price
	previous := alert.CurrentPrice

	// Re-running against an unchanged price is a no-op.
	if current.Sub(previous).Abs().LessThan(e.opts.Epsilon) {
		return OutcomeUnchanged, nil
	}

	if err := e.history.Record(ctx, alert.ProductID, current, quote.CurrencyID, "evaluator"); err != nil {
		return 0, fmt.Errorf("record observation: %w", err)
	}

	now := time.Now().UTC()
	if err := e.alerts.UpdateAlertCheck(ctx, alert.ID, current, now); err != nil {
		return 0, fmt.Errorf("update alert check: %w", err)
	}

	reason := triggerReason(alert, current, previous)
	if reason == "" {
		return OutcomeChecked, nil
	}

	reserved, err := e.gate.TryReserve(ctx, alert.ID, current)
	if err != nil {
		return 0, fmt.Errorf("reserve cooldown: %w", err)
	}
	if !reserved {
		return OutcomeSuppressed, nil
	}

	savings := previous.Sub(current)
	savingsPct := decimal.Zero
	if previous.Sign() > 0 {
		savingsPct = savings.Div(previous).Mul(decimal.NewFromInt(100))
	}

	note := alerting.Notification{
		AlertID:       alert.ID,
		WatchedItemID: alert.WatchedItemID,
		ProductID:     alert.ProductID,
		CustomerID:    alert.CustomerID,
		OldPrice:      previous,
		NewPrice:      current,
		TargetPrice:   alert.TargetPrice,
		Savings:       savings,
		SavingsPct:    savingsPct,
		Reason:        reason,
		TriggeredAt:   now,
	}

	if e.dispatcher != nil {
		if err := e.dispatcher.Send(ctx, note); err != nil {
			// The cooldown slot is consumed either way; delivery retries are
			// the dispatcher's concern.
			e.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("failed to dispatch notification")
		}
	} else {
		e.logger.Info().
			Int64("alert_id", alert.ID).
			Str("product_id", alert.ProductID).
			Str("old_price", previous.String()).
			Str("new_price", current.String()).
			Str("reason", reason).
			Msg("notification descriptor produced (no dispatcher configured)")
	}

	if err := e.alerts.MarkAlertTriggered(ctx, alert.ID, current, now); err != nil {
		return 0, fmt.Errorf("mark alert triggered: %w", err)
	}

	return OutcomeNotified, nil
}

func (e *Evaluator) fetchPrice(ctx context.Context, productID string) (catalog.PriceQuote, error) {
	if e.opts.PriceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.PriceTimeout)
		defer cancel()
	}
	return e.source.CurrentPrice(ctx, productID)
}

// triggerReason decides whether the new price fires the alert.
// Threshold-reached wins over any-drop when both apply.
func triggerReason(alert storage.PriceAlert, current, previous decimal.Decimal) string {
	if current.LessThanOrEqual(alert.TargetPrice) {
		return alerting.ReasonThresholdReached
	}
	if alert.Options.NotifyOnAnyDrop && current.LessThan(previous) {
		return alerting.ReasonAnyDrop
	}
	return ""
}
