package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"monte/internal/metrics"
	"monte/internal/model"
)

// GetResetMarker returns the reset marker, or nil before the first check.
func (db *DB) GetResetMarker(ctx context.Context) (*model.ResetMarker, error) {
	var raw string
	err := db.QueryRowContext(ctx, "SELECT last_reset FROM settings WHERE id = 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	date, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("parse last_reset %q: %w", raw, err)
	}
	return &model.ResetMarker{LastResetDate: date}, nil
}

// ResetIfStale compares today with the marker inside one write transaction:
// no marker bootstraps it without purging, an older marker purges all
// reservations and advances it, anything else is a no-op. The marker never
// moves backwards.
func (db *DB) ResetIfStale(ctx context.Context, today time.Time) (outcome model.ResetOutcome, err error) {
	defer metrics.ObserveStoreOp("reset", time.Now())

	day := today.Format(model.DateLayout)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return model.ResetNoop, fmt.Errorf("begin reset: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var last string
	err = tx.QueryRowContext(ctx, "SELECT last_reset FROM settings WHERE id = 1").Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err = tx.ExecContext(ctx, "INSERT INTO settings (id, last_reset) VALUES (1, ?)", day); err != nil {
			return model.ResetNoop, fmt.Errorf("bootstrap reset marker: %w", err)
		}
		outcome = model.ResetBootstrapped
	case err != nil:
		return model.ResetNoop, fmt.Errorf("read reset marker: %w", err)
	case day > last:
		if _, err = tx.ExecContext(ctx, "DELETE FROM reservations"); err != nil {
			return model.ResetNoop, fmt.Errorf("purge reservations: %w", err)
		}
		if _, err = tx.ExecContext(ctx, "UPDATE settings SET last_reset = ? WHERE id = 1", day); err != nil {
			return model.ResetNoop, fmt.Errorf("advance reset marker: %w", err)
		}
		outcome = model.ResetPurged
	default:
		// Same day, or the clock went backwards.
		err = tx.Rollback()
		return model.ResetNoop, err
	}

	if err = tx.Commit(); err != nil {
		return model.ResetNoop, fmt.Errorf("commit reset: %w", err)
	}
	return outcome, nil
}
