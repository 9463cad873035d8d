package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"price-watch/internal/config"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrAlertNotFound indicates a lookup for an unknown alert.
	ErrAlertNotFound = errors.New("storage: alert not found")
	// ErrSummaryExists indicates a daily summary already exists for the product-day.
	ErrSummaryExists = errors.New("storage: daily summary already exists")
)

const (
	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AlertStore defines operations for price alert persistence.
type AlertStore interface {
	UpsertAlert(ctx context.Context, alert PriceAlert) (PriceAlert, error)
	GetAlert(ctx context.Context, id int64) (PriceAlert, error)
	DeactivateAlert(ctx context.Context, watchedItemID string) error
	ListActiveAlerts(ctx context.Context, afterID int64, limit int) ([]PriceAlert, error)
	UpdateAlertCheck(ctx context.Context, id int64, price decimal.Decimal, checkedAt time.Time) error
	MarkAlertTriggered(ctx context.Context, id int64, price decimal.Decimal, triggeredAt time.Time) error
}

// ObservationStore defines operations for raw price samples.
type ObservationStore interface {
	InsertObservation(ctx context.Context, obs PriceObservation) error
	LatestObservation(ctx context.Context, productID string) (PriceObservation, bool, error)
	ListObservationsBetween(ctx context.Context, productID string, from, to time.Time) ([]PriceObservation, error)
	ListRecentObservations(ctx context.Context, productID string, limit int) ([]PriceObservation, error)
	ListCompactableDays(ctx context.Context, cutoff time.Time) ([]ProductDay, error)
}

// SummaryStore defines operations for compacted daily summaries.
type SummaryStore interface {
	CompactProductDay(ctx context.Context, summary PriceDailySummary) error
	ListSummariesBetween(ctx context.Context, productID string, from, to time.Time) ([]PriceDailySummary, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// Store aggregates access to alerts, observations, and summaries.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
