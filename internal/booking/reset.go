package booking

import (
	"context"
	"fmt"
	"time"

	"monte/internal/events"
	"monte/internal/metrics"
	"monte/internal/model"
	"monte/internal/session"

	"github.com/rs/zerolog"
)

// ResetManager clears the schedule once per calendar day in the operating timezone.
type ResetManager struct {
	store    ResetStore
	views    session.ViewStore
	bus      EventPublisher
	location *time.Location
	now      func() time.Time
	logger   zerolog.Logger
}

func NewResetManager(store ResetStore, views session.ViewStore, bus EventPublisher, location *time.Location, logger *zerolog.Logger) *ResetManager {
	if location == nil {
		location = time.Local
	}
	return &ResetManager{
		store:    store,
		views:    views,
		bus:      bus,
		location: location,
		now:      time.Now,
		logger:   logger.With().Str("component", "reset").Logger(),
	}
}

// Today returns midnight of the current date in the operating timezone.
func (m *ResetManager) Today() time.Time {
	y, mo, d := m.now().In(m.location).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, m.location)
}

// CheckAndReset purges every reservation the first time it runs on a new
// date and reports whether it did. The first ever call only records today.
func (m *ResetManager) CheckAndReset(ctx context.Context) (bool, error) {
	today := m.Today()

	outcome, err := m.store.ResetIfStale(ctx, today)
	if err != nil {
		m.logger.Error().Err(err).Msg("reset check failed")
		return false, fmt.Errorf("%w: reset check: %w", model.ErrStorageUnavailable, err)
	}

	switch outcome {
	case model.ResetBootstrapped:
		m.logger.Info().Str("date", today.Format(model.DateLayout)).Msg("reset marker initialized")
		return false, nil
	case model.ResetPurged:
	default:
		return false, nil
	}

	if err := m.views.ClearAll(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed to clear session views after reset")
	}
	metrics.IncDailyReset("rollover")
	metrics.SetReservedSlots(0)
	if m.bus != nil {
		_ = m.bus.PublishJSON(events.ReservationsReset, events.ResetPayload{Date: today.Format(model.DateLayout)})
	}
	m.logger.Info().Str("date", today.Format(model.DateLayout)).Msg("all reservations reset for new day")
	return true, nil
}

// Run checks for a date change every interval so the rollover happens
// without traffic. It returns when ctx is done.
func (m *ResetManager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Failures are logged by CheckAndReset; the next tick retries.
		_, _ = m.CheckAndReset(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
