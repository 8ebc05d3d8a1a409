// Package audit exports the day's schedule as a spreadsheet.
package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"monte/internal/access"
	"monte/internal/model"

	"github.com/rs/zerolog"
)

const (
	reservationsSheet = "Reservations"
	availabilitySheet = "Availability"
)

// Source supplies the current day's schedule.
type Source interface {
	Today() time.Time
	AvailabilityView(ctx context.Context) ([]model.SlotView, error)
	ListReservations(ctx context.Context, admin access.Grant) ([]model.Reservation, error)
}

// Exporter renders a day's reservations and availability into xlsx.
type Exporter struct {
	source Source
	logger zerolog.Logger
}

func NewExporter(source Source, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		source: source,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Filename returns the export file name for date, e.g. monte_2026-10-16.xlsx.
func Filename(date time.Time) string {
	return fmt.Sprintf("monte_%s.xlsx", date.Format(model.DateLayout))
}

// WriteDay writes today's workbook to w and returns its file name.
func (e *Exporter) WriteDay(ctx context.Context, admin access.Grant, w io.Writer) (string, error) {
	reservations, err := e.source.ListReservations(ctx, admin)
	if err != nil {
		return "", err
	}
	view, err := e.source.AvailabilityView(ctx)
	if err != nil {
		return "", err
	}
	date := e.source.Today()

	book := NewWorkbook()
	defer book.Close()

	if err := book.AddSheet(reservationsSheet); err != nil {
		return "", err
	}
	if err := book.WriteHeader("Slot", "Name", "Phone", "Booked At"); err != nil {
		return "", err
	}
	for _, r := range reservations {
		booked := r.CreatedAt.In(date.Location()).Format("15:04:05")
		if err := book.WriteRow(r.Slot, r.OwnerName, r.OwnerPhone, booked); err != nil {
			return "", err
		}
	}

	if err := book.AddSheet(availabilitySheet); err != nil {
		return "", err
	}
	if err := book.WriteHeader("Slot", "Available"); err != nil {
		return "", err
	}
	for _, v := range view {
		available := 0
		if v.Status == model.StatusAvailable {
			available = 1
		}
		if err := book.WriteRow(v.Slot, available); err != nil {
			return "", err
		}
	}

	if err := book.Save(w); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	name := Filename(date)
	e.logger.Info().Str("file", name).Int("reservations", len(reservations)).Msg("day exported")
	return name, nil
}
