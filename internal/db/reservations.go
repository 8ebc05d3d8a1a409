package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"monte/internal/metrics"
	"monte/internal/model"

	"github.com/mattn/go-sqlite3"
)

// InsertReservation creates the reservation iff its slot is free.
// The slot check and the write are one statement; the contact pair is
// guarded by a unique index.
func (db *DB) InsertReservation(ctx context.Context, r *model.Reservation) error {
	defer metrics.ObserveStoreOp("insert", time.Now())

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO reservations (slot, owner_name, owner_phone, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slot) DO NOTHING`,
		r.Slot, r.OwnerName, r.OwnerPhone, r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicateContact
		}
		return fmt.Errorf("insert reservation %s: %w", r.Slot, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert reservation %s: %w", r.Slot, err)
	}
	if n == 0 {
		return model.ErrSlotTaken
	}
	return nil
}

// FindReservationByContact returns the reservation held by name/phone, or nil.
func (db *DB) FindReservationByContact(ctx context.Context, name, phone string) (*model.Reservation, error) {
	defer metrics.ObserveStoreOp("find_contact", time.Now())

	var r model.Reservation
	err := db.QueryRowContext(ctx,
		"SELECT slot, owner_name, owner_phone, created_at FROM reservations WHERE owner_name = ? AND owner_phone = ?",
		name, phone,
	).Scan(&r.Slot, &r.OwnerName, &r.OwnerPhone, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReservations returns every current reservation ordered by slot.
func (db *DB) ListReservations(ctx context.Context) ([]model.Reservation, error) {
	defer metrics.ObserveStoreOp("list", time.Now())

	rows, err := db.QueryContext(ctx,
		"SELECT slot, owner_name, owner_phone, created_at FROM reservations ORDER BY slot",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(&r.Slot, &r.OwnerName, &r.OwnerPhone, &r.CreatedAt); err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// DeleteReservation removes the reservation for slot.
func (db *DB) DeleteReservation(ctx context.Context, slot string) error {
	defer metrics.ObserveStoreOp("delete", time.Now())

	res, err := db.ExecContext(ctx, "DELETE FROM reservations WHERE slot = ?", slot)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// PurgeReservations removes every reservation and reports how many were removed.
func (db *DB) PurgeReservations(ctx context.Context) (int64, error) {
	defer metrics.ObserveStoreOp("purge", time.Now())

	res, err := db.ExecContext(ctx, "DELETE FROM reservations")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
