package api

import (
	"errors"
	"net/http"

	"monte/internal/booking"
	"monte/internal/metrics"
	"monte/internal/model"
	"monte/internal/session"
)

// SessionResponse is returned by POST /api/sessions.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// SlotRow is one slot as rendered to a client.
type SlotRow struct {
	Slot     string           `json:"slot"`
	Ends     string           `json:"ends"`
	Status   model.SlotStatus `json:"status"`
	Pending  bool             `json:"pending"`
	Bookable bool             `json:"bookable"`
}

// SlotsResponse is the client view for GET /api/slots.
type SlotsResponse struct {
	Date  string    `json:"date"`
	Reset bool      `json:"reset"`
	Slots []SlotRow `json:"slots"`
}

// BookRequest is the body of POST /api/bookings.
type BookRequest struct {
	Slot  string `json:"slot"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// handleStartSession issues a new client session.
// POST /api/sessions
func (s *HTTPServer) handleStartSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_start")

	sess, err := s.sessions.Start(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to start session")
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{SessionID: sess.ID})
}

// handleEndSession drops the caller's view hint.
// DELETE /api/sessions
func (s *HTTPServer) handleEndSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_end")

	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	if err := s.sessions.End(r.Context(), sess); err != nil {
		s.logger.Warn().Err(err).Str("session", sess.ID).Msg("failed to drop session view")
	}
	s.limiters.forget(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleSlots renders today's slots for the caller. Without a session header
// the view carries no pending hints.
// GET /api/slots
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	var sess *session.Session
	if r.Header.Get(sessionHeader) != "" {
		var ok bool
		if sess, ok = s.requireSession(w, r); !ok {
			return
		}
	}
	snap, err := s.booking.SessionView(r.Context(), sess)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotsResponse(snap))
}

// handleBook books one slot for the caller's session.
// POST /api/bookings
func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book")

	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	if !s.limiters.allow(sess.ID) {
		metrics.IncBookingAttempt("rate_limited")
		writeError(w, http.StatusTooManyRequests, "too many booking attempts; try again shortly")
		return
	}

	var req BookRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.booking.Book(r.Context(), sess, req.Slot, req.Name, req.Phone)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// requireSession resolves X-Session-ID to an issued session or writes the error.
func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing " + sessionHeader, Code: "unknown_session"})
		return nil, false
	}

	sess, err := s.sessions.Resume(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrUnknownSession):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "unknown_session"})
		return nil, false
	case err != nil:
		s.logger.Error().Err(err).Msg("failed to resume session")
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return nil, false
	}
	return sess, true
}

func toSlotsResponse(snap *booking.Snapshot) SlotsResponse {
	rows := make([]SlotRow, len(snap.Slots))
	for i, v := range snap.Slots {
		rows[i] = SlotRow{
			Slot:     v.Slot,
			Ends:     v.Ends,
			Status:   v.Status,
			Pending:  v.Pending,
			Bookable: v.Bookable(),
		}
	}
	return SlotsResponse{
		Date:  snap.Date.Format(model.DateLayout),
		Reset: snap.Reset,
		Slots: rows,
	}
}
