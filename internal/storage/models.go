package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertOptions carry per-alert evaluation switches.
type AlertOptions struct {
	NotifyOnAnyDrop  bool
	IncludeShipping  bool
	ConsiderVariants bool
}

// PriceAlert is one threshold watch attached to a wishlist item.
type PriceAlert struct {
	ID              int64
	WatchedItemID   string
	ProductID       string
	CustomerID      string
	TargetPrice     decimal.Decimal
	CurrentPrice    decimal.Decimal
	CurrencyID      string
	Active          bool
	Options         AlertOptions
	TriggeredCount  int
	LastTriggeredAt *time.Time
	LastCheckedAt   *time.Time
	LowestPriceSeen *decimal.Decimal
	CreatedAt       time.Time
}

// PriceObservation is one raw price sample for a product.
type PriceObservation struct {
	ID         int64
	ProductID  string
	Price      decimal.Decimal
	CurrencyID string
	Source     string
	RecordedAt time.Time
}

// PriceDailySummary is the compacted OHLC record for one product-day.
type PriceDailySummary struct {
	ID          int64
	ProductID   string
	Day         time.Time
	Open        decimal.Decimal
	Close       decimal.Decimal
	Min         decimal.Decimal
	Max         decimal.Decimal
	Avg         decimal.Decimal
	SampleCount int
	CurrencyID  string
	CreatedAt   time.Time
}

// ProductDay identifies one compaction unit.
type ProductDay struct {
	ProductID string
	Day       time.Time
}
