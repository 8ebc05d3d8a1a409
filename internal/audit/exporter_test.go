package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"monte/internal/access"
	"monte/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubSource struct {
	today        time.Time
	reservations []model.Reservation
	view         []model.SlotView
	err          error
}

func (s *stubSource) Today() time.Time { return s.today }

func (s *stubSource) AvailabilityView(context.Context) ([]model.SlotView, error) {
	return s.view, nil
}

func (s *stubSource) ListReservations(context.Context, access.Grant) ([]model.Reservation, error) {
	return s.reservations, s.err
}

func TestFilename(t *testing.T) {
	date := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "monte_2026-10-16.xlsx", Filename(date))
}

func TestExporter_WriteDay(t *testing.T) {
	logger := zerolog.New(io.Discard)
	loc := time.FixedZone("KST", 9*60*60)
	src := &stubSource{
		today: time.Date(2026, 10, 16, 0, 0, 0, 0, loc),
		reservations: []model.Reservation{
			{Slot: "12:00", OwnerName: "푸들/가을이", OwnerPhone: "010-1234", CreatedAt: time.Date(2026, 10, 16, 2, 5, 0, 0, time.UTC)},
		},
		view: []model.SlotView{
			{Slot: "11:00", Status: model.StatusAvailable},
			{Slot: "12:00", Status: model.StatusTaken},
		},
	}

	var buf bytes.Buffer
	name, err := NewExporter(src, &logger).WriteDay(context.Background(), access.Grant{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "monte_2026-10-16.xlsx", name)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{reservationsSheet, availabilitySheet}, f.GetSheetList())

	rows, err := f.GetRows(reservationsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Slot", "Name", "Phone", "Booked At"}, rows[0])
	assert.Equal(t, []string{"12:00", "푸들/가을이", "010-1234", "11:05:00"}, rows[1])

	styleID, err := f.GetCellStyle(reservationsSheet, "D1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)

	rows, err = f.GetRows(availabilitySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"11:00", "1"}, rows[1])
	assert.Equal(t, []string{"12:00", "0"}, rows[2])
}

func TestWorkbook_WriteHeaderWithoutSheet(t *testing.T) {
	wb := NewWorkbook()
	assert.Error(t, wb.WriteHeader("Slot"))
}

func TestExporter_WriteDaySourceError(t *testing.T) {
	logger := zerolog.New(io.Discard)
	src := &stubSource{err: errors.New("denied")}

	var buf bytes.Buffer
	_, err := NewExporter(src, &logger).WriteDay(context.Background(), access.Grant{}, &buf)
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}
