package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"price-watch/internal/alerting"
	"price-watch/internal/catalog"
	"price-watch/internal/storage"
)

type fakeAlertStore struct {
	mu        sync.Mutex
	alerts    map[int64]*storage.PriceAlert
	byItem    map[string]int64
	nextID    int64
	listCalls int
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{
		alerts: make(map[int64]*storage.PriceAlert),
		byItem: make(map[string]int64),
	}
}

func (f *fakeAlertStore) UpsertAlert(ctx context.Context, alert storage.PriceAlert) (storage.PriceAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.byItem[alert.WatchedItemID]; ok {
		existing := f.alerts[id]
		existing.ProductID = alert.ProductID
		existing.CustomerID = alert.CustomerID
		existing.TargetPrice = alert.TargetPrice
		existing.CurrentPrice = alert.CurrentPrice
		existing.CurrencyID = alert.CurrencyID
		existing.Options = alert.Options
		existing.Active = true
		return *existing, nil
	}

	f.nextID++
	alert.ID = f.nextID
	alert.Active = true
	alert.CreatedAt = time.Now().UTC()
	f.alerts[alert.ID] = &alert
	f.byItem[alert.WatchedItemID] = alert.ID
	return alert, nil
}

func (f *fakeAlertStore) GetAlert(ctx context.Context, id int64) (storage.PriceAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert, ok := f.alerts[id]
	if !ok {
		return storage.PriceAlert{}, storage.ErrAlertNotFound
	}
	return *alert, nil
}

func (f *fakeAlertStore) DeactivateAlert(ctx context.Context, watchedItemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byItem[watchedItemID]
	if !ok {
		return storage.ErrAlertNotFound
	}
	f.alerts[id].Active = false
	return nil
}

func (f *fakeAlertStore) ListActiveAlerts(ctx context.Context, afterID int64, limit int) ([]storage.PriceAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	ids := make([]int64, 0, len(f.alerts))
	for id, alert := range f.alerts {
		if alert.Active && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]storage.PriceAlert, 0, limit)
	for _, id := range ids {
		if len(result) == limit {
			break
		}
		result = append(result, *f.alerts[id])
	}
	return result, nil
}

func (f *fakeAlertStore) UpdateAlertCheck(ctx context.Context, id int64, price decimal.Decimal, checkedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert, ok := f.alerts[id]
	if !ok {
		return storage.ErrAlertNotFound
	}
	alert.CurrentPrice = price
	at := checkedAt
	alert.LastCheckedAt = &at
	return nil
}

func (f *fakeAlertStore) MarkAlertTriggered(ctx context.Context, id int64, price decimal.Decimal, triggeredAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert, ok := f.alerts[id]
	if !ok {
		return storage.ErrAlertNotFound
	}
	alert.TriggeredCount++
	at := triggeredAt
	alert.LastTriggeredAt = &at
	if alert.LowestPriceSeen == nil || price.LessThan(*alert.LowestPriceSeen) {
		lowest := price
		alert.LowestPriceSeen = &lowest
	}
	return nil
}

var _ storage.AlertStore = (*fakeAlertStore)(nil)

type fakeSource struct {
	mu     sync.Mutex
	quotes map[string]catalog.PriceQuote
	errs   map[string]error
	panics map[string]bool
	calls  int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		quotes: make(map[string]catalog.PriceQuote),
		errs:   make(map[string]error),
		panics: make(map[string]bool),
	}
}

func (f *fakeSource) setPrice(productID string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[productID] = catalog.PriceQuote{Price: decimal.NewFromFloat(price), CurrencyID: "EUR"}
}

func (f *fakeSource) CurrentPrice(ctx context.Context, productID string) (catalog.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics[productID] {
		panic("price source exploded")
	}
	if err, ok := f.errs[productID]; ok {
		return catalog.PriceQuote{}, err
	}
	quote, ok := f.quotes[productID]
	if !ok {
		return catalog.PriceQuote{}, catalog.ErrPriceUnavailable
	}
	return quote, nil
}

type recordedObservation struct {
	ProductID  string
	Price      decimal.Decimal
	CurrencyID string
	Source     string
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []recordedObservation
	err     error
}

func (f *fakeRecorder) Record(ctx context.Context, productID string, price decimal.Decimal, currencyID, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, recordedObservation{productID, price, currencyID, source})
	return nil
}

type fakeGate struct {
	mu       sync.Mutex
	deny     bool
	err      error
	reserved map[int64]bool
}

func newFakeGate() *fakeGate {
	return &fakeGate{reserved: make(map[int64]bool)}
}

func (f *fakeGate) TryReserve(ctx context.Context, alertID int64, price decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.deny || f.reserved[alertID] {
		return false, nil
	}
	f.reserved[alertID] = true
	return true, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []alerting.Notification
	err  error
}

func (f *fakeDispatcher) Send(ctx context.Context, note alerting.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, note)
	return nil
}
