package history

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"price-watch/internal/storage"
)

// Granularity selects the bucket width for aggregated reads.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity maps a user-supplied string onto a known granularity.
func ParseGranularity(value string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(value))) {
	case GranularityHour:
		return GranularityHour, nil
	case GranularityDay:
		return GranularityDay, nil
	case GranularityWeek:
		return GranularityWeek, nil
	case GranularityMonth:
		return GranularityMonth, nil
	default:
		return "", fmt.Errorf("unknown granularity %q", value)
	}
}

// Bucket is one aggregated OHLC record.
type Bucket struct {
	Start       time.Time
	Open        decimal.Decimal
	Close       decimal.Decimal
	Min         decimal.Decimal
	Max         decimal.Decimal
	Avg         decimal.Decimal
	SampleCount int
}

// bucketStart truncates a timestamp to the start of its bucket.
func (g Granularity) bucketStart(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityWeek:
		day := t.Truncate(24 * time.Hour)
		offset := (int(day.Weekday()) + 6) % 7 // weeks start Monday
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(24 * time.Hour)
	}
}

// fragment is a pre-aggregated slice of the series: a single raw sample or a
// whole compacted day. Merging fragments per bucket keeps open/close semantics
// intact across the raw/compacted boundary.
type fragment struct {
	start time.Time
	end   time.Time
	open  decimal.Decimal
	close decimal.Decimal
	min   decimal.Decimal
	max   decimal.Decimal
	sum   decimal.Decimal
	count int
}

func observationFragment(obs storage.PriceObservation) fragment {
	at := obs.RecordedAt.UTC()
	return fragment{
		start: at,
		end:   at,
		open:  obs.Price,
		close: obs.Price,
		min:   obs.Price,
		max:   obs.Price,
		sum:   obs.Price,
		count: 1,
	}
}

func summaryFragment(summary storage.PriceDailySummary) fragment {
	day := summary.Day.UTC().Truncate(24 * time.Hour)
	return fragment{
		start: day,
		end:   day.Add(24*time.Hour - time.Nanosecond),
		open:  summary.Open,
		close: summary.Close,
		min:   summary.Min,
		max:   summary.Max,
		sum:   summary.Avg.Mul(decimal.NewFromInt(int64(summary.SampleCount))),
		count: summary.SampleCount,
	}
}

func mergeFragments(fragments []fragment, granularity Granularity) []Bucket {
	if len(fragments) == 0 {
		return []Bucket{}
	}

	sort.Slice(fragments, func(i, j int) bool {
		return fragments[i].start.Before(fragments[j].start)
	})

	type accumulator struct {
		bucket    Bucket
		sum       decimal.Decimal
		latestEnd time.Time
	}

	order := make([]time.Time, 0)
	merged := make(map[time.Time]*accumulator)

	for _, frag := range fragments {
		start := granularity.bucketStart(frag.start)
		acc, exists := merged[start]
		if !exists {
			acc = &accumulator{
				bucket: Bucket{
					Start: start,
					Open:  frag.open,
					Close: frag.close,
					Min:   frag.min,
					Max:   frag.max,
				},
				sum:       frag.sum,
				latestEnd: frag.end,
			}
			acc.bucket.SampleCount = frag.count
			merged[start] = acc
			order = append(order, start)
			continue
		}

		if frag.min.LessThan(acc.bucket.Min) {
			acc.bucket.Min = frag.min
		}
		if frag.max.GreaterThan(acc.bucket.Max) {
			acc.bucket.Max = frag.max
		}
		if !frag.end.Before(acc.latestEnd) {
			acc.bucket.Close = frag.close
			acc.latestEnd = frag.end
		}
		acc.sum = acc.sum.Add(frag.sum)
		acc.bucket.SampleCount += frag.count
	}

	buckets := make([]Bucket, 0, len(order))
	for _, start := range order {
		acc := merged[start]
		if acc.bucket.SampleCount > 0 {
			acc.bucket.Avg = acc.sum.Div(decimal.NewFromInt(int64(acc.bucket.SampleCount)))
		}
		buckets = append(buckets, acc.bucket)
	}
	return buckets
}
