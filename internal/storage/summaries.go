package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	summaryColumns = `id,
        product_id,
        day,
        open_price,
        close_price,
        min_price,
        max_price,
        avg_price,
        sample_count,
        currency_id,
        created_at`

	insertSummarySQL = `INSERT INTO price_daily_summaries (
        product_id,
        day,
        open_price,
        close_price,
        min_price,
        max_price,
        avg_price,
        sample_count,
        currency_id
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    );`

	deleteDayObservationsSQL = `DELETE FROM price_observations
    WHERE product_id = $1
      AND recorded_at >= $2
      AND recorded_at < $3;`

	listSummariesBetweenSQL = `SELECT ` + summaryColumns + `
    FROM price_daily_summaries
    WHERE product_id = $1
      AND day >= $2::date
      AND day < $3::date
    ORDER BY day;`

	uniqueViolationCode = "23505"
)

// CompactProductDay writes the daily summary and deletes the consumed raw rows
// as one transaction. An existing summary for the product-day aborts the unit
// with ErrSummaryExists; the raw rows stay in place.
func (s *Store) CompactProductDay(ctx context.Context, summary PriceDailySummary) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	dayStart := summary.Day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin compaction tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, execErr := tx.Exec(ctx, insertSummarySQL,
		summary.ProductID,
		dayStart,
		summary.Open.String(),
		summary.Close.String(),
		summary.Min.String(),
		summary.Max.String(),
		summary.Avg.String(),
		summary.SampleCount,
		summary.CurrencyID,
	)
	if execErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(execErr, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrSummaryExists
		}
		return fmt.Errorf("insert daily summary: %w", execErr)
	}

	if _, execErr := tx.Exec(ctx, deleteDayObservationsSQL, summary.ProductID, dayStart, dayEnd); execErr != nil {
		return fmt.Errorf("delete compacted observations: %w", execErr)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit compaction tx: %w", err)
	}
	return nil
}

// ListSummariesBetween lists daily summaries with day in [from, to).
func (s *Store) ListSummariesBetween(ctx context.Context, productID string, from, to time.Time) ([]PriceDailySummary, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSummariesBetweenSQL, productID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list summaries between: %w", queryErr)
	}
	defer rows.Close()

	summaries := make([]PriceDailySummary, 0)
	for rows.Next() {
		summary, scanErr := scanSummary(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		summaries = append(summaries, summary)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return summaries, nil
}

func scanSummary(row rowScanner) (PriceDailySummary, error) {
	var (
		summary  PriceDailySummary
		openStr  string
		closeStr string
		minStr   string
		maxStr   string
		avgStr   string
	)

	if err := row.Scan(
		&summary.ID,
		&summary.ProductID,
		&summary.Day,
		&openStr,
		&closeStr,
		&minStr,
		&maxStr,
		&avgStr,
		&summary.SampleCount,
		&summary.CurrencyID,
		&summary.CreatedAt,
	); err != nil {
		return PriceDailySummary{}, err
	}
	summary.Day = summary.Day.UTC()

	fields := []struct {
		name string
		src  string
		dst  *decimal.Decimal
	}{
		{"open price", openStr, &summary.Open},
		{"close price", closeStr, &summary.Close},
		{"min price", minStr, &summary.Min},
		{"max price", maxStr, &summary.Max},
		{"avg price", avgStr, &summary.Avg},
	}
	for _, f := range fields {
		value, convErr := decimal.NewFromString(f.src)
		if convErr != nil {
			return PriceDailySummary{}, fmt.Errorf("parse %s: %w", f.name, convErr)
		}
		*f.dst = value
	}

	return summary, nil
}
