// Package session holds the per-session view hint: slots a session believes
// it has just booked. The hint is never consulted for availability decisions.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownSession is returned when a client presents an id that was never issued or has expired.
var ErrUnknownSession = errors.New("unknown session")

// Session identifies one client connection.
type Session struct {
	ID        string
	StartedAt time.Time
}

// ViewStore keeps the ordered list of slots each session booked, the set of
// issued sessions, and the last day each session rendered.
type ViewStore interface {
	Append(ctx context.Context, sessionID, slot string) error
	RemoveEverywhere(ctx context.Context, slot string) error
	// ClearAll drops every hint; registrations and seen dates survive.
	ClearAll(ctx context.Context) error
	Slots(ctx context.Context, sessionID string) ([]string, error)
	Drop(ctx context.Context, sessionID string) error

	Register(ctx context.Context, sessionID string) error
	Registered(ctx context.Context, sessionID string) (bool, error)
	// MarkSeen stores date as the session's last rendered day and returns
	// the previous one, or "" if the session never rendered.
	MarkSeen(ctx context.Context, sessionID, date string) (string, error)
}

// Manager issues sessions and resumes only the ones it issued.
type Manager struct {
	views ViewStore
}

func NewManager(views ViewStore) *Manager {
	return &Manager{views: views}
}

// Start issues and registers a fresh session.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	s := &Session{ID: uuid.NewString(), StartedAt: time.Now()}
	if err := m.views.Register(ctx, s.ID); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}
	return s, nil
}

// Resume rebuilds a session from a client-held id.
func (m *Manager) Resume(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUnknownSession
	}
	ok, err := m.views.Registered(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if !ok {
		return nil, ErrUnknownSession
	}
	return &Session{ID: id}, nil
}

// End discards the session's hint and registration.
func (m *Manager) End(ctx context.Context, s *Session) error {
	return m.views.Drop(ctx, s.ID)
}
