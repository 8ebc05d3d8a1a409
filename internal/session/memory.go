package session

import (
	"context"
	"sync"
	"time"
)

type memorySession struct {
	seen    string
	expires time.Time
}

// MemoryStore keeps view hints and session registrations in process memory.
// Registrations expire after ttl without activity.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	hints    map[string][]string
	sessions map[string]*memorySession
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		hints:    make(map[string][]string),
		sessions: make(map[string]*memorySession),
	}
}

func (s *MemoryStore) Append(_ context.Context, sessionID, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints[sessionID] = append(s.hints[sessionID], slot)
	return nil
}

func (s *MemoryStore) RemoveEverywhere(_ context.Context, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, slots := range s.hints {
		kept := slots[:0]
		for _, v := range slots {
			if v != slot {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(s.hints, id)
			continue
		}
		s.hints[id] = kept
	}
	return nil
}

func (s *MemoryStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = make(map[string][]string)
	return nil
}

func (s *MemoryStore) Slots(_ context.Context, sessionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hints[sessionID]...), nil
}

func (s *MemoryStore) Drop(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hints, sessionID)
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Register(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.sessions[sessionID] = &memorySession{expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Registered(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	return ok && s.now().Before(sess.expires), nil
}

func (s *MemoryStore) MarkSeen(_ context.Context, sessionID, date string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || !s.now().Before(sess.expires) {
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}
	prev := sess.seen
	sess.seen = date
	sess.expires = s.now().Add(s.ttl)
	return prev, nil
}

// pruneLocked drops expired registrations along with their hints.
func (s *MemoryStore) pruneLocked() {
	now := s.now()
	for id, sess := range s.sessions {
		if !now.Before(sess.expires) {
			delete(s.sessions, id)
			delete(s.hints, id)
		}
	}
}
