package history

import (
	"context"
	"sync"
	"time"

	"price-watch/internal/storage"
)

// fakeHistoryStore is an in-memory stand-in for the observation and summary stores.
type fakeHistoryStore struct {
	mu           sync.Mutex
	observations []storage.PriceObservation
	summaries    []storage.PriceDailySummary
	nextID       int64
	insertErr    error
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{}
}

func (f *fakeHistoryStore) InsertObservation(ctx context.Context, obs storage.PriceObservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.nextID++
	obs.ID = f.nextID
	f.observations = append(f.observations, obs)
	return nil
}

func (f *fakeHistoryStore) LatestObservation(ctx context.Context, productID string) (storage.PriceObservation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest storage.PriceObservation
	found := false
	for _, obs := range f.observations {
		if obs.ProductID != productID {
			continue
		}
		if !found || obs.RecordedAt.After(latest.RecordedAt) || (obs.RecordedAt.Equal(latest.RecordedAt) && obs.ID > latest.ID) {
			latest = obs
			found = true
		}
	}
	return latest, found, nil
}

func (f *fakeHistoryStore) ListObservationsBetween(ctx context.Context, productID string, from, to time.Time) ([]storage.PriceObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]storage.PriceObservation, 0)
	for _, obs := range f.observations {
		if obs.ProductID != productID {
			continue
		}
		if obs.RecordedAt.Before(from) || !obs.RecordedAt.Before(to) {
			continue
		}
		result = append(result, obs)
	}
	return result, nil
}

func (f *fakeHistoryStore) ListRecentObservations(ctx context.Context, productID string, limit int) ([]storage.PriceObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]storage.PriceObservation, 0)
	for i := len(f.observations) - 1; i >= 0 && len(result) < limit; i-- {
		if f.observations[i].ProductID == productID {
			result = append(result, f.observations[i])
		}
	}
	return result, nil
}

func (f *fakeHistoryStore) ListCompactableDays(ctx context.Context, cutoff time.Time) ([]storage.ProductDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[storage.ProductDay]bool)
	days := make([]storage.ProductDay, 0)
	for _, obs := range f.observations {
		if !obs.RecordedAt.Before(cutoff) {
			continue
		}
		unit := storage.ProductDay{
			ProductID: obs.ProductID,
			Day:       obs.RecordedAt.UTC().Truncate(24 * time.Hour),
		}
		if !seen[unit] {
			seen[unit] = true
			days = append(days, unit)
		}
	}
	return days, nil
}

func (f *fakeHistoryStore) CompactProductDay(ctx context.Context, summary storage.PriceDailySummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	day := summary.Day.UTC().Truncate(24 * time.Hour)
	for _, existing := range f.summaries {
		if existing.ProductID == summary.ProductID && existing.Day.Equal(day) {
			return storage.ErrSummaryExists
		}
	}
	f.nextID++
	summary.ID = f.nextID
	summary.Day = day
	f.summaries = append(f.summaries, summary)

	dayEnd := day.Add(24 * time.Hour)
	kept := f.observations[:0]
	for _, obs := range f.observations {
		if obs.ProductID == summary.ProductID && !obs.RecordedAt.Before(day) && obs.RecordedAt.Before(dayEnd) {
			continue
		}
		kept = append(kept, obs)
	}
	f.observations = kept
	return nil
}

func (f *fakeHistoryStore) ListSummariesBetween(ctx context.Context, productID string, from, to time.Time) ([]storage.PriceDailySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]storage.PriceDailySummary, 0)
	for _, summary := range f.summaries {
		if summary.ProductID != productID {
			continue
		}
		if summary.Day.Before(from) || !summary.Day.Before(to) {
			continue
		}
		result = append(result, summary)
	}
	return result, nil
}

var (
	_ storage.ObservationStore = (*fakeHistoryStore)(nil)
	_ storage.SummaryStore     = (*fakeHistoryStore)(nil)
)
