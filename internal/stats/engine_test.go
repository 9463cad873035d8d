package stats

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-watch/internal/storage"
)

// fakeSeries serves a fixed set of observations and summaries.
type fakeSeries struct {
	observations []storage.PriceObservation
	summaries    []storage.PriceDailySummary
}

func (f *fakeSeries) RawSeries(ctx context.Context, productID string, from, to time.Time) ([]storage.PriceObservation, error) {
	result := make([]storage.PriceObservation, 0)
	for _, obs := range f.observations {
		if obs.ProductID == productID && !obs.RecordedAt.Before(from) && obs.RecordedAt.Before(to) {
			result = append(result, obs)
		}
	}
	return result, nil
}

func (f *fakeSeries) Summaries(ctx context.Context, productID string, from, to time.Time) ([]storage.PriceDailySummary, error) {
	result := make([]storage.PriceDailySummary, 0)
	for _, summary := range f.summaries {
		if summary.ProductID == productID && !summary.Day.Before(from) && summary.Day.Before(to) {
			result = append(result, summary)
		}
	}
	return result, nil
}

func seriesOf(prices ...float64) *fakeSeries {
	f := &fakeSeries{}
	now := time.Now().UTC()
	start := now.Add(-time.Duration(len(prices)) * time.Hour)
	for i, p := range prices {
		f.observations = append(f.observations, storage.PriceObservation{
			ID:         int64(i + 1),
			ProductID:  "prod-1",
			Price:      decimal.NewFromFloat(p),
			CurrencyID: "EUR",
			Source:     "evaluator",
			RecordedAt: start.Add(time.Duration(i) * time.Hour),
		})
	}
	return f
}

func TestStatsDecreasingTrend(t *testing.T) {
	engine := NewEngine(seriesOf(10, 10, 10, 10, 10, 8, 8, 8, 8, 8), zerolog.Nop())

	report, err := engine.Stats(context.Background(), "prod-1", 7)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	// second-half avg 8 < 10 * 0.95
	if report.Trend != TrendDecreasing {
		t.Fatalf("expected decreasing trend, got %s", report.Trend)
	}
}

func TestStatsIncreasingTrend(t *testing.T) {
	engine := NewEngine(seriesOf(10, 10, 10, 12, 12, 12), zerolog.Nop())

	report, err := engine.Stats(context.Background(), "prod-1", 7)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if report.Trend != TrendIncreasing {
		t.Fatalf("expected increasing trend, got %s", report.Trend)
	}
}

func TestStatsStableWithinDeadband(t *testing.T) {
	// second-half avg 10.2 is inside the ±5% band around 10.
	engine := NewEngine(seriesOf(10, 10, 10, 10.2, 10.2, 10.2), zerolog.Nop())

	report, err := engine.Stats(context.Background(), "prod-1", 7)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if report.Trend != TrendStable {
		t.Fatalf("expected stable trend, got %s", report.Trend)
	}
}

func TestStatsAggregates(t *testing.T) {
	engine := NewEngine(seriesOf(10, 9, 11, 8), zerolog.Nop())

	report, err := engine.Stats(context.Background(), "prod-1", 7)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if !report.Current.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("current mismatch: %s", report.Current)
	}
	if !report.Min.Equal(decimal.NewFromInt(8)) || !report.Max.Equal(decimal.NewFromInt(11)) {
		t.Fatalf("min/max mismatch: %s/%s", report.Min, report.Max)
	}
	if !report.Avg.Equal(decimal.NewFromFloat(9.5)) {
		t.Fatalf("avg mismatch: %s", report.Avg)
	}
	if report.PriceDropCount != 2 {
		t.Fatalf("expected 2 adjacent drops, got %d", report.PriceDropCount)
	}
}

func TestStatsVolatility(t *testing.T) {
	// mean 10, population stddev 1 -> 10%
	engine := NewEngine(seriesOf(9, 11), zerolog.Nop())

	report, err := engine.Stats(context.Background(), "prod-1", 7)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if math.Abs(report.VolatilityPct-10.0) > 1e-9 {
		t.Fatalf("expected volatility 10%%, got %f", report.VolatilityPct)
	}
}

func TestStatsFlatSeriesHasZeroVolatility(t *testing.T) {
	engine := NewEngine(seriesOf(10, 10, 10), zerolog.Nop())

	report, err := engine.Stats(context.Background(), "prod-1", 7)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if report.VolatilityPct != 0 {
		t.Fatalf("flat series should have zero volatility, got %f", report.VolatilityPct)
	}
	if report.Trend != TrendStable {
		t.Fatalf("flat series should be stable, got %s", report.Trend)
	}
}

func TestStatsEmptyWindow(t *testing.T) {
	engine := NewEngine(&fakeSeries{}, zerolog.Nop())

	if _, err := engine.Stats(context.Background(), "prod-1", 7); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestStatsIncludesCompactedSummaries(t *testing.T) {
	f := &fakeSeries{}
	day := time.Now().UTC().AddDate(0, 0, -5).Truncate(24 * time.Hour)
	f.summaries = append(f.summaries, storage.PriceDailySummary{
		ProductID:   "prod-1",
		Day:         day,
		Open:        decimal.NewFromInt(20),
		Close:       decimal.NewFromInt(18),
		Min:         decimal.NewFromInt(18),
		Max:         decimal.NewFromInt(20),
		Avg:         decimal.NewFromInt(19),
		SampleCount: 2,
		CurrencyID:  "EUR",
	})
	f.observations = append(f.observations, storage.PriceObservation{
		ID: 1, ProductID: "prod-1", Price: decimal.NewFromInt(17),
		CurrencyID: "EUR", Source: "evaluator", RecordedAt: time.Now().UTC().Add(-time.Hour),
	})

	engine := NewEngine(f, zerolog.Nop())
	report, err := engine.Stats(context.Background(), "prod-1", 30)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if report.SampleCount != 2 {
		t.Fatalf("summary close should count as a sample: %d", report.SampleCount)
	}
	if !report.Max.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("summary close of 18 should be the max, got %s", report.Max)
	}
	if !report.Current.Equal(decimal.NewFromInt(17)) {
		t.Fatalf("newest raw sample should be current, got %s", report.Current)
	}
}

func TestPredictInsufficientData(t *testing.T) {
	engine := NewEngine(seriesOf(10, 9, 8), zerolog.Nop())

	forecast, err := engine.Predict(context.Background(), "prod-1", 7)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if forecast.Prediction != nil {
		t.Fatal("prediction should be nil below the sample minimum")
	}
	if forecast.ConfidencePct != 0 {
		t.Fatalf("confidence should be zero, got %f", forecast.ConfidencePct)
	}
	if forecast.Method != MethodInsufficientData {
		t.Fatalf("unexpected method %s", forecast.Method)
	}
}

func TestPredictLinearSeries(t *testing.T) {
	// Perfectly linear: price = 10 + i
	prices := make([]float64, 12)
	for i := range prices {
		prices[i] = 10 + float64(i)
	}
	engine := NewEngine(seriesOf(prices...), zerolog.Nop())

	forecast, err := engine.Predict(context.Background(), "prod-1", 3)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if forecast.Method != MethodLinearRegression {
		t.Fatalf("unexpected method %s", forecast.Method)
	}
	if forecast.Prediction == nil {
		t.Fatal("prediction should be present")
	}
	// index n-1+3 = 14 -> 10 + 14 = 24
	if got := forecast.Prediction.InexactFloat64(); math.Abs(got-24) > 1e-6 {
		t.Fatalf("expected prediction 24, got %f", got)
	}
	if math.Abs(forecast.ConfidencePct-100) > 1e-6 {
		t.Fatalf("perfect fit should have confidence 100, got %f", forecast.ConfidencePct)
	}
	if forecast.Trend != TrendIncreasing {
		t.Fatalf("positive slope should be increasing, got %s", forecast.Trend)
	}
	if math.Abs(forecast.DailyChange-1) > 1e-9 {
		t.Fatalf("daily change should equal slope 1, got %f", forecast.DailyChange)
	}
}

func TestPredictClampsAtZero(t *testing.T) {
	// Steeply falling series extrapolates below zero.
	prices := make([]float64, 10)
	for i := range prices {
		prices[i] = 50 - float64(i)*5
	}
	engine := NewEngine(seriesOf(prices...), zerolog.Nop())

	forecast, err := engine.Predict(context.Background(), "prod-1", 10)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if forecast.Prediction == nil {
		t.Fatal("prediction should be present")
	}
	if !forecast.Prediction.IsZero() {
		t.Fatalf("prediction should clamp at zero, got %s", forecast.Prediction)
	}
	if forecast.Trend != TrendDecreasing {
		t.Fatalf("negative slope should be decreasing, got %s", forecast.Trend)
	}
}

func TestPredictRejectsNonPositiveHorizon(t *testing.T) {
	engine := NewEngine(&fakeSeries{}, zerolog.Nop())
	if _, err := engine.Predict(context.Background(), "prod-1", 0); err == nil {
		t.Fatal("zero horizon should be rejected")
	}
}
