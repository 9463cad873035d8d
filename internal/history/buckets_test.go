package history

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-watch/internal/storage"
)

func TestParseGranularity(t *testing.T) {
	for _, valid := range []string{"hour", "day", "week", "month", " Day "} {
		if _, err := ParseGranularity(valid); err != nil {
			t.Fatalf("%q should parse: %v", valid, err)
		}
	}
	if _, err := ParseGranularity("fortnight"); err == nil {
		t.Fatal("unknown granularity must be rejected")
	}
}

func TestBucketStartWeekStartsMonday(t *testing.T) {
	// 2026-08-20 is a Thursday.
	thursday := time.Date(2026, 8, 20, 13, 45, 0, 0, time.UTC)
	start := GranularityWeek.bucketStart(thursday)
	if start.Weekday() != time.Monday {
		t.Fatalf("week bucket should start Monday, got %s", start.Weekday())
	}
	if !start.Equal(time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected week start %s", start)
	}
}

func TestBucketStartMonth(t *testing.T) {
	at := time.Date(2026, 8, 20, 13, 45, 0, 0, time.UTC)
	start := GranularityMonth.bucketStart(at)
	if !start.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month start %s", start)
	}
}

func TestAggregatedBucketsRawSamplesByHour(t *testing.T) {
	store := newFakeHistoryStore()
	svc := NewService(store, store, testEpsilon(), zerolog.Nop())
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	store.observations = append(store.observations,
		observationAt("prod-1", 5.00, base.Add(5*time.Minute)),
		observationAt("prod-1", 4.50, base.Add(20*time.Minute)),
		observationAt("prod-1", 4.80, base.Add(40*time.Minute)),
		observationAt("prod-1", 6.00, base.Add(70*time.Minute)),
	)

	buckets, err := svc.Aggregated(context.Background(), "prod-1", base, base.Add(2*time.Hour), GranularityHour)
	if err != nil {
		t.Fatalf("Aggregated failed: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 hourly buckets, got %d", len(buckets))
	}

	first := buckets[0]
	if !first.Start.Equal(base) {
		t.Fatalf("unexpected bucket start %s", first.Start)
	}
	if !first.Open.Equal(decimal.NewFromFloat(5.00)) || !first.Close.Equal(decimal.NewFromFloat(4.80)) {
		t.Fatalf("open/close mismatch: %s/%s", first.Open, first.Close)
	}
	if !first.Min.Equal(decimal.NewFromFloat(4.50)) || !first.Max.Equal(decimal.NewFromFloat(5.00)) {
		t.Fatalf("min/max mismatch: %s/%s", first.Min, first.Max)
	}
	if first.SampleCount != 3 {
		t.Fatalf("sample count mismatch: %d", first.SampleCount)
	}

	second := buckets[1]
	if second.SampleCount != 1 || !second.Open.Equal(decimal.NewFromFloat(6.00)) {
		t.Fatalf("second bucket mismatch: %+v", second)
	}
}

func TestAggregatedReadsSummariesDirectlyForCoveredDays(t *testing.T) {
	store := newFakeHistoryStore()
	svc := NewService(store, store, testEpsilon(), zerolog.Nop())
	day := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	store.summaries = append(store.summaries, storage.PriceDailySummary{
		ProductID:   "prod-1",
		Day:         day,
		Open:        decimal.NewFromFloat(5.00),
		Close:       decimal.NewFromFloat(4.80),
		Min:         decimal.NewFromFloat(4.50),
		Max:         decimal.NewFromFloat(5.00),
		Avg:         decimal.NewFromFloat(4.77),
		SampleCount: 3,
		CurrencyID:  "EUR",
	})

	buckets, err := svc.Aggregated(context.Background(), "prod-1", day, day.Add(24*time.Hour), GranularityDay)
	if err != nil {
		t.Fatalf("Aggregated failed: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	bucket := buckets[0]
	if !bucket.Open.Equal(decimal.NewFromFloat(5.00)) || !bucket.Close.Equal(decimal.NewFromFloat(4.80)) {
		t.Fatalf("summary should pass through: %+v", bucket)
	}
	if bucket.SampleCount != 3 {
		t.Fatalf("sample count should come from summary: %d", bucket.SampleCount)
	}
}

func TestAggregatedMergesSummaryAndRawIntoOneWeek(t *testing.T) {
	store := newFakeHistoryStore()
	svc := NewService(store, store, testEpsilon(), zerolog.Nop())

	// Monday 2026-08-17; summary covers Monday, raw samples land Wednesday.
	monday := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	wednesday := monday.AddDate(0, 0, 2)

	store.summaries = append(store.summaries, storage.PriceDailySummary{
		ProductID:   "prod-1",
		Day:         monday,
		Open:        decimal.NewFromFloat(10.00),
		Close:       decimal.NewFromFloat(9.00),
		Min:         decimal.NewFromFloat(8.50),
		Max:         decimal.NewFromFloat(10.00),
		Avg:         decimal.NewFromFloat(9.00),
		SampleCount: 4,
		CurrencyID:  "EUR",
	})
	store.observations = append(store.observations,
		observationAt("prod-1", 8.00, wednesday.Add(9*time.Hour)),
		observationAt("prod-1", 11.00, wednesday.Add(15*time.Hour)),
	)

	buckets, err := svc.Aggregated(context.Background(), "prod-1", monday, monday.AddDate(0, 0, 7), GranularityWeek)
	if err != nil {
		t.Fatalf("Aggregated failed: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("expected a single weekly bucket, got %d", len(buckets))
	}

	week := buckets[0]
	if !week.Open.Equal(decimal.NewFromFloat(10.00)) {
		t.Fatalf("open should come from the summary day, got %s", week.Open)
	}
	if !week.Close.Equal(decimal.NewFromFloat(11.00)) {
		t.Fatalf("close should come from the last raw sample, got %s", week.Close)
	}
	if !week.Min.Equal(decimal.NewFromFloat(8.00)) || !week.Max.Equal(decimal.NewFromFloat(11.00)) {
		t.Fatalf("min/max should span both sources: %s/%s", week.Min, week.Max)
	}
	if week.SampleCount != 6 {
		t.Fatalf("sample count should sum summary and raw counts, got %d", week.SampleCount)
	}
}

func TestAggregatedEmptyRange(t *testing.T) {
	store := newFakeHistoryStore()
	svc := NewService(store, store, testEpsilon(), zerolog.Nop())

	buckets, err := svc.Aggregated(context.Background(), "prod-1", time.Now().Add(-time.Hour), time.Now(), GranularityHour)
	if err != nil {
		t.Fatalf("Aggregated failed: %v", err)
	}
	if len(buckets) != 0 {
		t.Fatalf("expected no buckets, got %d", len(buckets))
	}
}
