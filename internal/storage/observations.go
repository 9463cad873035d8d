package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	observationColumns = `id,
        product_id,
        price,
        currency_id,
        source,
        recorded_at`

	insertObservationSQL = `INSERT INTO price_observations (
        product_id,
        price,
        currency_id,
        source,
        recorded_at
    ) VALUES (
        $1,$2,$3,$4,$5
    );`

	latestObservationSQL = `SELECT ` + observationColumns + `
    FROM price_observations
    WHERE product_id = $1
    ORDER BY recorded_at DESC, id DESC
    LIMIT 1;`

	listObservationsBetweenSQL = `SELECT ` + observationColumns + `
    FROM price_observations
    WHERE product_id = $1
      AND recorded_at >= $2
      AND recorded_at < $3
    ORDER BY recorded_at, id;`

	listRecentObservationsSQL = `SELECT ` + observationColumns + `
    FROM price_observations
    WHERE product_id = $1
    ORDER BY recorded_at DESC, id DESC
    LIMIT $2;`

	listCompactableDaysSQL = `SELECT
        product_id,
        (recorded_at AT TIME ZONE 'UTC')::date AS day
    FROM price_observations
    WHERE recorded_at < $1
    GROUP BY product_id, day
    ORDER BY product_id, day;`
)

// InsertObservation appends one raw price sample.
func (s *Store) InsertObservation(ctx context.Context, obs PriceObservation) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertObservationSQL,
		obs.ProductID,
		obs.Price.String(),
		obs.CurrencyID,
		obs.Source,
		obs.RecordedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert observation: %w", execErr)
	}
	return nil
}

// LatestObservation returns the most recent sample for a product, if any.
func (s *Store) LatestObservation(ctx context.Context, productID string) (PriceObservation, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceObservation{}, false, err
	}

	obs, scanErr := scanObservation(pool.QueryRow(ctx, latestObservationSQL, productID))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return PriceObservation{}, false, nil
		}
		return PriceObservation{}, false, fmt.Errorf("latest observation: %w", scanErr)
	}
	return obs, true, nil
}

// ListObservationsBetween lists samples within [from, to) in chronological order.
func (s *Store) ListObservationsBetween(ctx context.Context, productID string, from, to time.Time) ([]PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listObservationsBetweenSQL, productID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list observations between: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows)
}

// ListRecentObservations lists the newest samples, newest first.
func (s *Store) ListRecentObservations(ctx context.Context, productID string, limit int) ([]PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentObservationsSQL, productID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent observations: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows)
}

// ListCompactableDays lists distinct product-days holding raw samples older than cutoff.
func (s *Store) ListCompactableDays(ctx context.Context, cutoff time.Time) ([]ProductDay, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCompactableDaysSQL, cutoff)
	if queryErr != nil {
		return nil, fmt.Errorf("list compactable days: %w", queryErr)
	}
	defer rows.Close()

	days := make([]ProductDay, 0)
	for rows.Next() {
		var day ProductDay
		if err := rows.Scan(&day.ProductID, &day.Day); err != nil {
			return nil, err
		}
		day.Day = day.Day.UTC()
		days = append(days, day)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return days, nil
}

func collectObservations(rows pgx.Rows) ([]PriceObservation, error) {
	observations := make([]PriceObservation, 0)
	for rows.Next() {
		obs, scanErr := scanObservation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

func scanObservation(row rowScanner) (PriceObservation, error) {
	var (
		obs      PriceObservation
		priceStr string
	)

	if err := row.Scan(
		&obs.ID,
		&obs.ProductID,
		&priceStr,
		&obs.CurrencyID,
		&obs.Source,
		&obs.RecordedAt,
	); err != nil {
		return PriceObservation{}, err
	}

	price, convErr := decimal.NewFromString(priceStr)
	if convErr != nil {
		return PriceObservation{}, fmt.Errorf("parse price: %w", convErr)
	}
	obs.Price = price

	return obs, nil
}
