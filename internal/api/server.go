// Package api exposes the booking engine over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"monte/internal/access"
	"monte/internal/audit"
	"monte/internal/booking"
	"monte/internal/model"
	"monte/internal/session"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	sessionHeader = "X-Session-ID"
	maxBodyBytes  = 1 << 16
)

// Limits configures per-session booking throttling.
type Limits struct {
	PerSecond float64
	Burst     int
}

// HTTPServer serves the client and admin API.
type HTTPServer struct {
	server   *http.Server
	booking  *booking.Service
	sessions *session.Manager
	access   *access.Service
	exporter *audit.Exporter
	limiters *limiterStore
	logger   zerolog.Logger
}

func NewHTTPServer(
	addr string,
	svc *booking.Service,
	sessions *session.Manager,
	auth *access.Service,
	exporter *audit.Exporter,
	limits Limits,
	logger *zerolog.Logger,
) *HTTPServer {
	s := &HTTPServer{
		booking:  svc,
		sessions: sessions,
		access:   auth,
		exporter: exporter,
		limiters: newLimiterStore(rate.Limit(limits.PerSecond), limits.Burst),
		logger:   logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.handleStartSession)
	mux.HandleFunc("DELETE /api/sessions", s.handleEndSession)
	mux.HandleFunc("GET /api/slots", s.handleSlots)
	mux.HandleFunc("POST /api/bookings", s.handleBook)

	mux.HandleFunc("POST /api/admin/login", s.handleAdminLogin)
	mux.Handle("POST /api/admin/logout", s.requireAdmin(s.handleAdminLogout))
	mux.Handle("GET /api/admin/reservations", s.requireAdmin(s.handleReservations))
	mux.Handle("DELETE /api/admin/reservations/{slot}", s.requireAdmin(s.handleCancel))
	mux.Handle("POST /api/admin/reset", s.requireAdmin(s.handleAdminReset))
	mux.Handle("GET /api/admin/occupancy", s.requireAdmin(s.handleOccupancy))
	mux.Handle("GET /api/admin/export", s.requireAdmin(s.handleExport))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown; it never returns http.ErrServerClosed.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// limiterIdle is how long a session's limiter survives without requests.
const limiterIdle = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds one token bucket per session and evicts idle ones.
type limiterStore struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
}

func newLimiterStore(limit rate.Limit, burst int) *limiterStore {
	if burst <= 0 {
		burst = 1
	}
	return &limiterStore{
		limit:     limit,
		burst:     burst,
		idle:      limiterIdle,
		now:       time.Now,
		limiters:  make(map[string]*limiterEntry),
		lastSweep: time.Now(),
	}
}

func (l *limiterStore) allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweepLocked(now)
	}
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()
	return entry.limiter.AllowN(now, 1)
}

func (l *limiterStore) sweepLocked(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= l.idle {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

func (l *limiterStore) forget(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps booking and access errors to HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	msg := err.Error()

	switch {
	case errors.Is(err, model.ErrMissingField):
		status, code = http.StatusBadRequest, "missing_field"
	case errors.Is(err, model.ErrUnknownSlot):
		status, code = http.StatusBadRequest, "unknown_slot"
	case errors.Is(err, model.ErrDuplicateContact):
		status, code = http.StatusConflict, "duplicate_contact"
	case errors.Is(err, model.ErrSlotTaken):
		status, code = http.StatusConflict, "slot_taken"
	case errors.Is(err, model.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case access.IsDenied(err):
		status, code = http.StatusUnauthorized, "denied"
	case errors.Is(err, model.ErrStorageUnavailable):
		status, code = http.StatusServiceUnavailable, "storage_unavailable"
		msg = model.ErrStorageUnavailable.Error()
	default:
		s.logger.Error().Err(err).Msg("unhandled service error")
		msg = "internal error"
	}

	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
