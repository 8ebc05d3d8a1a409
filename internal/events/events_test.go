package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got []Event
	bus.Subscribe(ReservationCreated, func(e Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(ReservationCreated, func(Event) error {
		return errors.New("ignored")
	})

	require.NoError(t, bus.PublishJSON(ReservationCreated, map[string]string{"slot": "11:00"}))
	require.NoError(t, bus.PublishJSON(ReservationCancelled, map[string]string{"slot": "11:00"}))

	require.Len(t, got, 1)
	assert.False(t, got[0].CreatedAt.IsZero())

	var payload struct {
		Slot string `json:"slot"`
	}
	require.NoError(t, got[0].Decode(&payload))
	assert.Equal(t, "11:00", payload.Slot)
}

func TestEventBus_PublishJSONError(t *testing.T) {
	bus := NewEventBus()
	assert.Error(t, bus.PublishJSON(ReservationsReset, make(chan int)))
}

func TestJournal(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bus := NewEventBus()
	Journal(bus, &logger)

	require.NoError(t, bus.PublishJSON(ReservationCreated, SlotPayload{Slot: "11:00"}))
	require.NoError(t, bus.PublishJSON(ReservationsReset, ResetPayload{Date: "2026-10-17"}))
	require.NoError(t, bus.PublishJSON(ReservationsPurged, PurgePayload{Removed: 3}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "11:00", entry["slot"])
	assert.Equal(t, ReservationCreated, entry["event"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "2026-10-17", entry["date"])

	require.NoError(t, json.Unmarshal([]byte(lines[2]), &entry))
	assert.Equal(t, float64(3), entry["removed"])
}

func TestJournal_BadPayload(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bus := NewEventBus()
	Journal(bus, &logger)

	bus.Publish(Event{Type: ReservationsPurged, Payload: []byte("not json")})
	assert.Contains(t, buf.String(), "undecodable event")
}
