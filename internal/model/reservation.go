package model

import (
	"errors"
	"time"
)

// DateLayout is the calendar-date format used for the reset marker.
const DateLayout = "2006-01-02"

var (
	ErrMissingField       = errors.New("name and phone are required")
	ErrDuplicateContact   = errors.New("a reservation with the same name and phone already exists")
	ErrSlotTaken          = errors.New("slot is already reserved")
	ErrNotFound           = errors.New("reservation not found")
	ErrUnknownSlot        = errors.New("slot is not in the daily catalog")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Reservation is the occupancy of one slot for the current day.
type Reservation struct {
	Slot       string    `json:"slot"`
	OwnerName  string    `json:"owner_name"`
	OwnerPhone string    `json:"owner_phone"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResetMarker tracks the last calendar date the schedule was cleared.
type ResetMarker struct {
	LastResetDate time.Time `json:"last_reset_date"`
}

// ResetOutcome describes what a reset check did.
type ResetOutcome int

const (
	ResetNoop ResetOutcome = iota
	ResetBootstrapped
	ResetPurged
)

func (o ResetOutcome) String() string {
	switch o {
	case ResetBootstrapped:
		return "bootstrap"
	case ResetPurged:
		return "purge"
	default:
		return "noop"
	}
}

type SlotStatus string

const (
	StatusAvailable SlotStatus = "available"
	StatusTaken     SlotStatus = "taken"
)

// SlotView is one row of the availability view.
// Pending is a session-local hint and never decides Status.
type SlotView struct {
	Slot    string     `json:"slot"`
	Ends    string     `json:"ends"`
	Status  SlotStatus `json:"status"`
	Pending bool       `json:"pending,omitempty"`
}

// Bookable reports whether the slot should be offered to the user.
func (v SlotView) Bookable() bool {
	return v.Status == StatusAvailable && !v.Pending
}
