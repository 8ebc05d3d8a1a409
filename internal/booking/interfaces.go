package booking

import (
	"context"
	"time"

	"monte/internal/access"
	"monte/internal/model"
)

// ReservationStore is the authoritative reservation table.
// InsertReservation must be a single conditional write.
type ReservationStore interface {
	InsertReservation(ctx context.Context, r *model.Reservation) error
	FindReservationByContact(ctx context.Context, name, phone string) (*model.Reservation, error)
	ListReservations(ctx context.Context) ([]model.Reservation, error)
	DeleteReservation(ctx context.Context, slot string) error
	PurgeReservations(ctx context.Context) (int64, error)
}

// ResetStore holds the reset marker and applies the daily purge atomically.
type ResetStore interface {
	ResetIfStale(ctx context.Context, today time.Time) (model.ResetOutcome, error)
}

// Authorizer validates admin grants.
type Authorizer interface {
	Check(g access.Grant) error
}

// EventPublisher receives domain events.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
