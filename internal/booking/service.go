// Package booking decides whether a booking succeeds and keeps the daily
// schedule consistent with the reservation store.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"monte/internal/access"
	"monte/internal/events"
	"monte/internal/metrics"
	"monte/internal/model"
	"monte/internal/session"
	"monte/internal/slots"

	"github.com/rs/zerolog"
)

// Snapshot is the authoritative view rendered for one session.
type Snapshot struct {
	Date  time.Time        `json:"date"`
	Reset bool             `json:"reset"`
	Slots []model.SlotView `json:"slots"`
}

// OccupancyPoint is one bar of the admin chart: 1 when available, 0 when taken.
type OccupancyPoint struct {
	Slot      string `json:"slot"`
	Available int    `json:"available"`
}

// Service is the booking engine.
type Service struct {
	store   ReservationStore
	catalog *slots.Catalog
	views   session.ViewStore
	resets  *ResetManager
	auth    Authorizer
	bus     EventPublisher
	logger  zerolog.Logger
}

func NewService(
	store ReservationStore,
	catalog *slots.Catalog,
	views session.ViewStore,
	resets *ResetManager,
	auth Authorizer,
	bus EventPublisher,
	logger *zerolog.Logger,
) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		views:   views,
		resets:  resets,
		auth:    auth,
		bus:     bus,
		logger:  logger.With().Str("component", "booking").Logger(),
	}
}

// Catalog returns the daily slot catalog.
func (s *Service) Catalog() *slots.Catalog {
	return s.catalog
}

// Today returns the current date in the operating timezone.
func (s *Service) Today() time.Time {
	return s.resets.Today()
}

// Book reserves slot for name/phone on behalf of sess. Checks run in order:
// missing field, unknown slot, duplicate contact, slot taken.
func (s *Service) Book(ctx context.Context, sess *session.Session, slot, name, phone string) (*model.Reservation, error) {
	if name == "" || phone == "" {
		metrics.IncBookingAttempt("missing_field")
		return nil, model.ErrMissingField
	}
	if _, ok := s.catalog.Lookup(slot); !ok {
		metrics.IncBookingAttempt("unknown_slot")
		return nil, model.ErrUnknownSlot
	}

	if _, err := s.resets.CheckAndReset(ctx); err != nil {
		return nil, err
	}

	existing, err := s.store.FindReservationByContact(ctx, name, phone)
	if err != nil {
		return nil, s.storageError("find contact", err)
	}
	if existing != nil {
		metrics.IncBookingAttempt("duplicate_contact")
		s.logger.Warn().Str("slot", slot).Str("held", existing.Slot).Msg("booking rejected: duplicate contact")
		return nil, model.ErrDuplicateContact
	}

	r := &model.Reservation{Slot: slot, OwnerName: name, OwnerPhone: phone, CreatedAt: time.Now()}
	if err := s.store.InsertReservation(ctx, r); err != nil {
		switch {
		case errors.Is(err, model.ErrSlotTaken):
			metrics.IncBookingAttempt("slot_taken")
			s.logger.Warn().Str("slot", slot).Msg("booking rejected: slot taken")
			return nil, model.ErrSlotTaken
		case errors.Is(err, model.ErrDuplicateContact):
			metrics.IncBookingAttempt("duplicate_contact")
			return nil, model.ErrDuplicateContact
		default:
			return nil, s.storageError("insert", err)
		}
	}

	if sess != nil {
		if err := s.views.Append(ctx, sess.ID, slot); err != nil {
			s.logger.Warn().Err(err).Str("session", sess.ID).Msg("failed to record session view")
		}
	}

	metrics.IncBookingAttempt("success")
	s.publish(events.ReservationCreated, events.SlotPayload{Slot: slot})
	s.logger.Info().Str("slot", slot).Msg("reservation created")
	return r, nil
}

// Cancel deletes the reservation for slot and drops it from every session hint.
func (s *Service) Cancel(ctx context.Context, admin access.Grant, slot string) error {
	if err := s.auth.Check(admin); err != nil {
		return err
	}

	if err := s.store.DeleteReservation(ctx, slot); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return s.storageError("delete", err)
	}

	if err := s.views.RemoveEverywhere(ctx, slot); err != nil {
		s.logger.Warn().Err(err).Str("slot", slot).Msg("failed to drop slot from session views")
	}

	metrics.IncReservationCancelled()
	s.publish(events.ReservationCancelled, events.SlotPayload{Slot: slot})
	s.logger.Info().Str("slot", slot).Msg("reservation cancelled")
	return nil
}

// PurgeAll clears every reservation on admin request.
func (s *Service) PurgeAll(ctx context.Context, admin access.Grant) (int64, error) {
	if err := s.auth.Check(admin); err != nil {
		return 0, err
	}

	n, err := s.store.PurgeReservations(ctx)
	if err != nil {
		return 0, s.storageError("purge", err)
	}

	if err := s.views.ClearAll(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear session views after purge")
	}

	metrics.IncDailyReset("admin")
	metrics.SetReservedSlots(0)
	s.publish(events.ReservationsPurged, events.PurgePayload{Removed: n})
	s.logger.Info().Int64("removed", n).Msg("all reservations purged by admin")
	return n, nil
}

// AvailabilityView maps every catalog slot to available or taken, from the store only.
func (s *Service) AvailabilityView(ctx context.Context) ([]model.SlotView, error) {
	if _, err := s.resets.CheckAndReset(ctx); err != nil {
		return nil, err
	}
	return s.availability(ctx)
}

// SessionView is AvailabilityView annotated with the session's pending hint.
// Reset is reported once per session: on its first render after the day
// changed, whoever performed the purge.
func (s *Service) SessionView(ctx context.Context, sess *session.Session) (*Snapshot, error) {
	reset, err := s.resets.CheckAndReset(ctx)
	if err != nil {
		return nil, err
	}

	view, err := s.availability(ctx)
	if err != nil {
		return nil, err
	}

	today := s.resets.Today()
	if sess != nil {
		hint, err := s.views.Slots(ctx, sess.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("session", sess.ID).Msg("failed to read session view")
		}
		pending := make(map[string]bool, len(hint))
		for _, slot := range hint {
			pending[slot] = true
		}
		for i := range view {
			view[i].Pending = pending[view[i].Slot]
		}

		day := today.Format(model.DateLayout)
		prev, err := s.views.MarkSeen(ctx, sess.ID, day)
		if err != nil {
			s.logger.Warn().Err(err).Str("session", sess.ID).Msg("failed to record session render")
		} else {
			reset = prev != "" && prev < day
		}
	}

	return &Snapshot{Date: today, Reset: reset, Slots: view}, nil
}

// ListReservations returns every current reservation ordered by slot.
func (s *Service) ListReservations(ctx context.Context, admin access.Grant) ([]model.Reservation, error) {
	if err := s.auth.Check(admin); err != nil {
		return nil, err
	}
	if _, err := s.resets.CheckAndReset(ctx); err != nil {
		return nil, err
	}

	list, err := s.store.ListReservations(ctx)
	if err != nil {
		return nil, s.storageError("list", err)
	}
	return list, nil
}

// Occupancy returns chart data in catalog order.
func (s *Service) Occupancy(ctx context.Context) ([]OccupancyPoint, error) {
	view, err := s.AvailabilityView(ctx)
	if err != nil {
		return nil, err
	}
	points := make([]OccupancyPoint, len(view))
	for i, v := range view {
		points[i] = OccupancyPoint{Slot: v.Slot}
		if v.Status == model.StatusAvailable {
			points[i].Available = 1
		}
	}
	return points, nil
}

func (s *Service) availability(ctx context.Context) ([]model.SlotView, error) {
	list, err := s.store.ListReservations(ctx)
	if err != nil {
		return nil, s.storageError("list", err)
	}

	taken := make(map[string]bool, len(list))
	for _, r := range list {
		taken[r.Slot] = true
	}

	view := make([]model.SlotView, 0, s.catalog.Len())
	reserved := 0
	for _, slot := range s.catalog.Slots() {
		v := model.SlotView{Slot: slot.Label(), Ends: slot.EndLabel(), Status: model.StatusAvailable}
		if taken[v.Slot] {
			v.Status = model.StatusTaken
			reserved++
		}
		view = append(view, v)
	}
	metrics.SetReservedSlots(reserved)
	return view, nil
}

func (s *Service) publish(eventType string, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func (s *Service) storageError(op string, err error) error {
	s.logger.Error().Err(err).Str("op", op).Msg("reservation store failed")
	return fmt.Errorf("%w: %s: %w", model.ErrStorageUnavailable, op, err)
}
