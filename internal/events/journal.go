package events

import (
	"github.com/rs/zerolog"
)

// Journal subscribes a handler per event type that writes one structured log
// line per schedule change.
func Journal(bus *EventBus, logger *zerolog.Logger) {
	log := logger.With().Str("component", "journal").Logger()

	slotHandler := func(e Event) error {
		var p SlotPayload
		if err := e.Decode(&p); err != nil {
			log.Warn().Err(err).Str("event", e.Type).Msg("undecodable event")
			return err
		}
		log.Info().Str("event", e.Type).Str("slot", p.Slot).Time("at", e.CreatedAt).Msg("schedule changed")
		return nil
	}
	bus.Subscribe(ReservationCreated, slotHandler)
	bus.Subscribe(ReservationCancelled, slotHandler)

	bus.Subscribe(ReservationsReset, func(e Event) error {
		var p ResetPayload
		if err := e.Decode(&p); err != nil {
			log.Warn().Err(err).Str("event", e.Type).Msg("undecodable event")
			return err
		}
		log.Info().Str("event", e.Type).Str("date", p.Date).Msg("schedule cleared for new day")
		return nil
	})

	bus.Subscribe(ReservationsPurged, func(e Event) error {
		var p PurgePayload
		if err := e.Decode(&p); err != nil {
			log.Warn().Err(err).Str("event", e.Type).Msg("undecodable event")
			return err
		}
		log.Info().Str("event", e.Type).Int64("removed", p.Removed).Msg("schedule cleared by admin")
		return nil
	})
}
