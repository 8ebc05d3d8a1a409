package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const defaultRetryInterval = time.Minute

// FailoverStore uses primary (Redis) and switches to fallback (memory) while
// primary is failing, re-probing it after retryInterval. Hints written to the
// fallback during an outage are not copied back.
type FailoverStore struct {
	primary       ViewStore
	fallback      ViewStore
	logger        *zerolog.Logger
	retryInterval time.Duration

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverStore(primary, fallback ViewStore, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:       primary,
		fallback:      fallback,
		logger:        logger,
		retryInterval: defaultRetryInterval,
	}
}

func (f *FailoverStore) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Since(f.lastCheck) >= f.retryInterval
}

func (f *FailoverStore) markDown(op string, err error) {
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
	if !f.isDown.Swap(true) {
		f.logger.Warn().Err(err).Str("op", op).Msg("session view store down, using fallback")
	}
}

func (f *FailoverStore) markUp() {
	if f.isDown.Swap(false) {
		f.logger.Info().Msg("session view store recovered")
	}
}

func (f *FailoverStore) do(op string, fn func(ViewStore) error) error {
	if f.usePrimary() {
		err := fn(f.primary)
		if err == nil {
			f.markUp()
			return nil
		}
		f.markDown(op, err)
	}
	return fn(f.fallback)
}

func (f *FailoverStore) Append(ctx context.Context, sessionID, slot string) error {
	return f.do("append", func(s ViewStore) error { return s.Append(ctx, sessionID, slot) })
}

// RemoveEverywhere also clears the fallback so hints left from an outage go too.
func (f *FailoverStore) RemoveEverywhere(ctx context.Context, slot string) error {
	_ = f.fallback.RemoveEverywhere(ctx, slot)
	return f.do("remove_everywhere", func(s ViewStore) error { return s.RemoveEverywhere(ctx, slot) })
}

func (f *FailoverStore) ClearAll(ctx context.Context) error {
	_ = f.fallback.ClearAll(ctx)
	return f.do("clear_all", func(s ViewStore) error { return s.ClearAll(ctx) })
}

func (f *FailoverStore) Slots(ctx context.Context, sessionID string) ([]string, error) {
	var out []string
	err := f.do("slots", func(s ViewStore) error {
		slots, err := s.Slots(ctx, sessionID)
		out = slots
		return err
	})
	return out, err
}

func (f *FailoverStore) Drop(ctx context.Context, sessionID string) error {
	_ = f.fallback.Drop(ctx, sessionID)
	return f.do("drop", func(s ViewStore) error { return s.Drop(ctx, sessionID) })
}

func (f *FailoverStore) Register(ctx context.Context, sessionID string) error {
	return f.do("register", func(s ViewStore) error { return s.Register(ctx, sessionID) })
}

// Registered also consults the fallback so sessions issued during an outage
// stay valid after the primary recovers.
func (f *FailoverStore) Registered(ctx context.Context, sessionID string) (bool, error) {
	var ok bool
	err := f.do("registered", func(s ViewStore) error {
		var err error
		ok, err = s.Registered(ctx, sessionID)
		return err
	})
	if err == nil && !ok {
		return f.fallback.Registered(ctx, sessionID)
	}
	return ok, err
}

func (f *FailoverStore) MarkSeen(ctx context.Context, sessionID, date string) (string, error) {
	var prev string
	err := f.do("mark_seen", func(s ViewStore) error {
		var err error
		prev, err = s.MarkSeen(ctx, sessionID, date)
		return err
	})
	return prev, err
}
