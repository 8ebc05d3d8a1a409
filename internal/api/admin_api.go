package api

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"monte/internal/access"
	"monte/internal/metrics"
)

type grantKey struct{}

// LoginRequest is the body of POST /api/admin/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse carries the bearer token for admin routes.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetResponse reports how many reservations an admin reset removed.
type ResetResponse struct {
	Removed int64 `json:"removed"`
}

// requireAdmin resolves the bearer token before the handler runs.
func (s *HTTPServer) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "admin login required", Code: "denied"})
			return
		}

		grant, err := s.access.Verify(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Code: "denied"})
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), grantKey{}, grant)))
	})
}

func grantFrom(ctx context.Context) access.Grant {
	g, _ := ctx.Value(grantKey{}).(access.Grant)
	return g
}

// handleAdminLogin exchanges the admin password for a token.
// POST /api/admin/login
func (s *HTTPServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_login")

	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	grant, err := s.access.Authenticate(req.Password)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Code: "denied"})
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: grant.Token(), ExpiresAt: grant.ExpiresAt()})
}

// handleAdminLogout revokes the caller's token.
// POST /api/admin/logout
func (s *HTTPServer) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_logout")

	s.access.Revoke(grantFrom(r.Context()).Token())
	w.WriteHeader(http.StatusNoContent)
}

// handleReservations lists today's reservations.
// GET /api/admin/reservations
func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_reservations")

	list, err := s.booking.ListReservations(r.Context(), grantFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCancel frees one slot.
// DELETE /api/admin/reservations/{slot}
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_cancel")

	if err := s.booking.Cancel(r.Context(), grantFrom(r.Context()), r.PathValue("slot")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminReset clears every reservation and ends the admin session.
// POST /api/admin/reset
func (s *HTTPServer) handleAdminReset(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_reset")

	grant := grantFrom(r.Context())
	n, err := s.booking.PurgeAll(r.Context(), grant)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.access.Revoke(grant.Token())
	writeJSON(w, http.StatusOK, ResetResponse{Removed: n})
}

// handleOccupancy returns chart data, 1 for available and 0 for taken.
// GET /api/admin/occupancy
func (s *HTTPServer) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_occupancy")

	points, err := s.booking.Occupancy(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// handleExport downloads today's schedule as xlsx.
// GET /api/admin/export
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_export")

	var buf bytes.Buffer
	name, err := s.exporter.WriteDay(r.Context(), grantFrom(r.Context()), &buf)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
