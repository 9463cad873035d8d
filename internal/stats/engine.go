package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-watch/internal/storage"
)

// ErrNoData indicates the window holds no price samples for the product.
var ErrNoData = errors.New("stats: no price data in window")

// Trend labels. The ±5% deadband is the single stable-vs-trending policy;
// any caller wanting a different band needs its own named classifier.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"

	trendDeadband = 0.05
)

// Forecast methods.
const (
	MethodLinearRegression = "linear_regression"
	MethodInsufficientData = "insufficient_data"

	minForecastSamples   = 10
	forecastLookbackDays = 90
)

// SeriesSource supplies the stored price series for a product.
type SeriesSource interface {
	RawSeries(ctx context.Context, productID string, from, to time.Time) ([]storage.PriceObservation, error)
	Summaries(ctx context.Context, productID string, from, to time.Time) ([]storage.PriceDailySummary, error)
}

// Report aggregates window statistics for one product.
type Report struct {
	ProductID      string
	WindowDays     int
	SampleCount    int
	Current        decimal.Decimal
	Min            decimal.Decimal
	Max            decimal.Decimal
	Avg            decimal.Decimal
	Trend          string
	VolatilityPct  float64
	PriceDropCount int
}

// Forecast is a least-squares price projection.
type Forecast struct {
	ProductID     string
	DaysAhead     int
	Prediction    *decimal.Decimal
	ConfidencePct float64
	Trend         string
	DailyChange   float64
	Method        string
	SampleCount   int
}

// Engine derives statistics and forecasts from the price history.
type Engine struct {
	source SeriesSource
	logger zerolog.Logger
}

// NewEngine constructs a statistics engine over a series source.
func NewEngine(source SeriesSource, logger zerolog.Logger) *Engine {
	return &Engine{
		source: source,
		logger: logger.With().Str("component", "stats").Logger(),
	}
}

type sample struct {
	at    time.Time
	price decimal.Decimal
}

// Stats computes window statistics for a product.
func (e *Engine) Stats(ctx context.Context, productID string, windowDays int) (Report, error) {
	if windowDays <= 0 {
		return Report{}, fmt.Errorf("window days must be positive, got %d", windowDays)
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -windowDays)

	samples, err := e.collect(ctx, productID, from, to)
	if err != nil {
		return Report{}, err
	}
	if len(samples) == 0 {
		return Report{}, ErrNoData
	}

	report := Report{
		ProductID:   productID,
		WindowDays:  windowDays,
		SampleCount: len(samples),
		Current:     samples[len(samples)-1].price,
		Min:         samples[0].price,
		Max:         samples[0].price,
	}

	sum := decimal.Zero
	prices := make([]float64, len(samples))
	for i, s := range samples {
		if s.price.LessThan(report.Min) {
			report.Min = s.price
		}
		if s.price.GreaterThan(report.Max) {
			report.Max = s.price
		}
		sum = sum.Add(s.price)
		prices[i] = s.price.InexactFloat64()
	}
	report.Avg = sum.Div(decimal.NewFromInt(int64(len(samples))))

	report.Trend = classifyTrend(prices)
	report.VolatilityPct = volatilityPct(prices)
	report.PriceDropCount = countDrops(prices)

	return report, nil
}

// Predict extrapolates an ordinary-least-squares line over the last 90 days
// of samples. Fewer than 10 samples yields no prediction.
func (e *Engine) Predict(ctx context.Context, productID string, daysAhead int) (Forecast, error) {
	if daysAhead <= 0 {
		return Forecast{}, fmt.Errorf("days ahead must be positive, got %d", daysAhead)
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -forecastLookbackDays)

	samples, err := e.collect(ctx, productID, from, to)
	if err != nil {
		return Forecast{}, err
	}

	forecast := Forecast{
		ProductID:   productID,
		DaysAhead:   daysAhead,
		SampleCount: len(samples),
	}
	if len(samples) < minForecastSamples {
		forecast.Method = MethodInsufficientData
		return forecast, nil
	}

	prices := make([]float64, len(samples))
	for i, s := range samples {
		prices[i] = s.price.InexactFloat64()
	}

	slope, intercept, r2 := linearFit(prices)

	// Extrapolate over sample index, not wall-clock time.
	predicted := slope*float64(len(prices)-1+daysAhead) + intercept
	if predicted < 0 {
		predicted = 0
	}
	value := decimal.NewFromFloat(predicted)

	forecast.Prediction = &value
	forecast.ConfidencePct = clamp(r2*100, 0, 100)
	forecast.DailyChange = slope
	forecast.Method = MethodLinearRegression
	if slope > 0 {
		forecast.Trend = TrendIncreasing
	} else {
		forecast.Trend = TrendDecreasing
	}

	return forecast, nil
}

// collect merges compacted summaries and raw observations into one
// chronological series. A summary contributes its close at end of day.
func (e *Engine) collect(ctx context.Context, productID string, from, to time.Time) ([]sample, error) {
	dayFrom := from.Truncate(24 * time.Hour)

	summaries, err := e.source.Summaries(ctx, productID, dayFrom, to)
	if err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}
	observations, err := e.source.RawSeries(ctx, productID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load raw series: %w", err)
	}

	samples := make([]sample, 0, len(summaries)+len(observations))
	for _, summary := range summaries {
		samples = append(samples, sample{
			at:    summary.Day.UTC().Add(24 * time.Hour),
			price: summary.Close,
		})
	}
	for _, obs := range observations {
		samples = append(samples, sample{at: obs.RecordedAt.UTC(), price: obs.Price})
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].at.Before(samples[j].at) })
	return samples, nil
}

// classifyTrend compares the average of the chronologically later half
// against the earlier half.
func classifyTrend(prices []float64) string {
	if len(prices) < 2 {
		return TrendStable
	}

	half := len(prices) / 2
	firstAvg := mean(prices[:half])
	secondAvg := mean(prices[half:])

	switch {
	case secondAvg > firstAvg*(1+trendDeadband):
		return TrendIncreasing
	case secondAvg < firstAvg*(1-trendDeadband):
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// volatilityPct is the population standard deviation over the mean, in percent.
func volatilityPct(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	m := mean(prices)
	if m == 0 {
		return 0
	}

	variance := 0.0
	for _, p := range prices {
		delta := p - m
		variance += delta * delta
	}
	variance /= float64(len(prices))

	return math.Sqrt(variance) / m * 100
}

func countDrops(prices []float64) int {
	drops := 0
	for i := 1; i < len(prices); i++ {
		if prices[i] < prices[i-1] {
			drops++
		}
	}
	return drops
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// linearFit runs ordinary least squares over index (0..n-1) vs value and
// reports the coefficient of determination.
func linearFit(values []float64) (slope, intercept, r2 float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, mean(values), 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}

	den := n*sumX2 - sumX*sumX
	slope = (n*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, v := range values {
		predicted := slope*float64(i) + intercept
		ssRes += (v - predicted) * (v - predicted)
		ssTot += (v - meanY) * (v - meanY)
	}
	if ssTot == 0 {
		// Flat series: the fit is exact.
		return slope, intercept, 1
	}
	return slope, intercept, 1 - ssRes/ssTot
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
