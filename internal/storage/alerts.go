package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	alertColumns = `id,
        watched_item_id,
        product_id,
        customer_id,
        target_price,
        current_price,
        currency_id,
        active,
        notify_on_any_drop,
        include_shipping,
        consider_variants,
        triggered_count,
        last_triggered_at,
        last_checked_at,
        lowest_price_seen,
        created_at`

	upsertAlertSQL = `INSERT INTO price_alerts (
        watched_item_id,
        product_id,
        customer_id,
        target_price,
        current_price,
        currency_id,
        active,
        notify_on_any_drop,
        include_shipping,
        consider_variants
    ) VALUES (
        $1,$2,$3,$4,$5,$6,TRUE,$7,$8,$9
    )
    ON CONFLICT (watched_item_id) DO UPDATE
    SET
        product_id         = EXCLUDED.product_id,
        customer_id        = EXCLUDED.customer_id,
        target_price       = EXCLUDED.target_price,
        current_price      = EXCLUDED.current_price,
        currency_id        = EXCLUDED.currency_id,
        active             = TRUE,
        notify_on_any_drop = EXCLUDED.notify_on_any_drop,
        include_shipping   = EXCLUDED.include_shipping,
        consider_variants  = EXCLUDED.consider_variants
    RETURNING ` + alertColumns + `;`

	getAlertSQL = `SELECT ` + alertColumns + `
    FROM price_alerts
    WHERE id = $1;`

	deactivateAlertSQL = `UPDATE price_alerts
    SET active = FALSE
    WHERE watched_item_id = $1;`

	listActiveAlertsSQL = `SELECT ` + alertColumns + `
    FROM price_alerts
    WHERE active
      AND id > $1
    ORDER BY id
    LIMIT $2;`

	updateAlertCheckSQL = `UPDATE price_alerts
    SET current_price = $2, last_checked_at = $3
    WHERE id = $1;`

	markAlertTriggeredSQL = `UPDATE price_alerts
    SET triggered_count   = triggered_count + 1,
        last_triggered_at = $2,
        lowest_price_seen = LEAST(COALESCE(lowest_price_seen, $3::numeric), $3::numeric)
    WHERE id = $1;`
)

// UpsertAlert inserts a new alert or updates the existing one for the watched item.
func (s *Store) UpsertAlert(ctx context.Context, alert PriceAlert) (PriceAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceAlert{}, err
	}

	row := pool.QueryRow(ctx, upsertAlertSQL,
		alert.WatchedItemID,
		alert.ProductID,
		alert.CustomerID,
		alert.TargetPrice.String(),
		alert.CurrentPrice.String(),
		alert.CurrencyID,
		alert.Options.NotifyOnAnyDrop,
		alert.Options.IncludeShipping,
		alert.Options.ConsiderVariants,
	)

	stored, scanErr := scanAlert(row)
	if scanErr != nil {
		return PriceAlert{}, fmt.Errorf("upsert alert: %w", scanErr)
	}
	return stored, nil
}

// GetAlert loads one alert by id.
func (s *Store) GetAlert(ctx context.Context, id int64) (PriceAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceAlert{}, err
	}

	alert, scanErr := scanAlert(pool.QueryRow(ctx, getAlertSQL, id))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return PriceAlert{}, ErrAlertNotFound
		}
		return PriceAlert{}, fmt.Errorf("get alert: %w", scanErr)
	}
	return alert, nil
}

// DeactivateAlert marks the alert for a watched item inactive. History is untouched.
func (s *Store) DeactivateAlert(ctx context.Context, watchedItemID string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, deactivateAlertSQL, watchedItemID)
	if execErr != nil {
		return fmt.Errorf("deactivate alert: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ListActiveAlerts pages active alerts by ascending id, starting after afterID.
func (s *Store) ListActiveAlerts(ctx context.Context, afterID int64, limit int) ([]PriceAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveAlertsSQL, afterID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list active alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]PriceAlert, 0, limit)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// UpdateAlertCheck stores the latest observed price and check timestamp.
func (s *Store) UpdateAlertCheck(ctx context.Context, id int64, price decimal.Decimal, checkedAt time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, updateAlertCheckSQL, id, price.String(), checkedAt)
	if execErr != nil {
		return fmt.Errorf("update alert check: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// MarkAlertTriggered records a delivered notification on the alert row.
func (s *Store) MarkAlertTriggered(ctx context.Context, id int64, price decimal.Decimal, triggeredAt time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, markAlertTriggeredSQL, id, triggeredAt, price.String())
	if execErr != nil {
		return fmt.Errorf("mark alert triggered: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func scanAlert(row rowScanner) (PriceAlert, error) {
	var (
		alert        PriceAlert
		targetStr    string
		currentStr   string
		lowestStr    sql.NullString
		lastTrigger  sql.NullTime
		lastChecked  sql.NullTime
	)

	if err := row.Scan(
		&alert.ID,
		&alert.WatchedItemID,
		&alert.ProductID,
		&alert.CustomerID,
		&targetStr,
		&currentStr,
		&alert.CurrencyID,
		&alert.Active,
		&alert.Options.NotifyOnAnyDrop,
		&alert.Options.IncludeShipping,
		&alert.Options.ConsiderVariants,
		&alert.TriggeredCount,
		&lastTrigger,
		&lastChecked,
		&lowestStr,
		&alert.CreatedAt,
	); err != nil {
		return PriceAlert{}, err
	}

	var convErr error
	alert.TargetPrice, convErr = decimal.NewFromString(targetStr)
	if convErr != nil {
		return PriceAlert{}, fmt.Errorf("parse target price: %w", convErr)
	}
	alert.CurrentPrice, convErr = decimal.NewFromString(currentStr)
	if convErr != nil {
		return PriceAlert{}, fmt.Errorf("parse current price: %w", convErr)
	}

	if lowestStr.Valid {
		lowest, parseErr := decimal.NewFromString(lowestStr.String)
		if parseErr != nil {
			return PriceAlert{}, fmt.Errorf("parse lowest price: %w", parseErr)
		}
		alert.LowestPriceSeen = &lowest
	}
	if lastTrigger.Valid {
		value := lastTrigger.Time
		alert.LastTriggeredAt = &value
	}
	if lastChecked.Valid {
		value := lastChecked.Time
		alert.LastCheckedAt = &value
	}

	return alert, nil
}
