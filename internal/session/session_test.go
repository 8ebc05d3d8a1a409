package session

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, time.Hour), mr
}

// exerciseViewStore runs the same behavioural checks against any ViewStore.
func exerciseViewStore(t *testing.T, store ViewStore) {
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", "11:00"))
	require.NoError(t, store.Append(ctx, "s1", "13:00"))
	require.NoError(t, store.Append(ctx, "s2", "13:00"))

	got, err := store.Slots(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00", "13:00"}, got)

	require.NoError(t, store.RemoveEverywhere(ctx, "13:00"))
	got, err = store.Slots(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00"}, got)
	got, err = store.Slots(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Append(ctx, "s3", "15:00"))
	require.NoError(t, store.Drop(ctx, "s3"))
	got, err = store.Slots(ctx, "s3")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Append(ctx, "s4", "16:00"))
	require.NoError(t, store.Append(ctx, "s5", "17:00"))
	require.NoError(t, store.ClearAll(ctx))
	for _, id := range []string{"s4", "s5"} {
		got, err = store.Slots(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

// exerciseRegistry checks session registration and seen-day tracking.
func exerciseRegistry(t *testing.T, store ViewStore) {
	ctx := context.Background()

	ok, err := store.Registered(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Register(ctx, "r1"))
	ok, err = store.Registered(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	prev, err := store.MarkSeen(ctx, "r1", "2026-10-16")
	require.NoError(t, err)
	assert.Empty(t, prev)

	prev, err = store.MarkSeen(ctx, "r1", "2026-10-17")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-16", prev)

	// Clearing hints keeps the seen day.
	require.NoError(t, store.Append(ctx, "r1", "11:00"))
	require.NoError(t, store.ClearAll(ctx))
	prev, err = store.MarkSeen(ctx, "r1", "2026-10-17")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-17", prev)

	require.NoError(t, store.Drop(ctx, "r1"))
	ok, err = store.Registered(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	exerciseViewStore(t, NewMemoryStore(time.Hour))
	exerciseRegistry(t, NewMemoryStore(time.Hour))
}

func TestMemoryStore_RegistrationExpires(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Register(ctx, "old"))
	require.NoError(t, store.Append(ctx, "old", "11:00"))

	now = now.Add(2 * time.Hour)
	ok, err := store.Registered(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)

	// The next registration sweeps expired sessions.
	require.NoError(t, store.Register(ctx, "new"))
	assert.NotContains(t, store.sessions, "old")
	assert.NotContains(t, store.hints, "old")
}

func TestRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)
	exerciseViewStore(t, store)
	exerciseRegistry(t, store)
}

func TestRedisStore_RegistryExpiresAndPrunes(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", "11:00"))
	assert.Equal(t, time.Hour, mr.TTL(store.registry()))

	// s1's list expires while s2 keeps the registry alive.
	mr.FastForward(40 * time.Minute)
	require.NoError(t, store.Append(ctx, "s2", "12:00"))
	mr.FastForward(30 * time.Minute)

	require.NoError(t, store.RemoveEverywhere(ctx, "12:00"))
	members, err := mr.Members(store.registry())
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, members)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", "11:00"))
	assert.Equal(t, time.Hour, mr.TTL(store.key("s1")))

	mr.FastForward(2 * time.Hour)
	got, err := store.Slots(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

type mockViewStore struct {
	mock.Mock
}

func (m *mockViewStore) Append(ctx context.Context, id, slot string) error {
	return m.Called(ctx, id, slot).Error(0)
}
func (m *mockViewStore) RemoveEverywhere(ctx context.Context, slot string) error {
	return m.Called(ctx, slot).Error(0)
}
func (m *mockViewStore) ClearAll(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockViewStore) Slots(ctx context.Context, id string) ([]string, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
func (m *mockViewStore) Drop(ctx context.Context, id string) error { return m.Called(ctx, id).Error(0) }
func (m *mockViewStore) Register(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockViewStore) Registered(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
func (m *mockViewStore) MarkSeen(ctx context.Context, id, date string) (string, error) {
	args := m.Called(ctx, id, date)
	return args.String(0), args.Error(1)
}

func TestFailoverStore(t *testing.T) {
	primary := new(mockViewStore)
	fallback := NewMemoryStore(time.Hour)
	logger := zerolog.New(io.Discard)
	store := NewFailoverStore(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Slots", ctx, "s1").Return([]string{"11:00"}, nil).Once()

		got, err := store.Slots(ctx, "s1")
		assert.NoError(t, err)
		assert.Equal(t, []string{"11:00"}, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Append", ctx, "s2", "12:00").Return(errors.New("connection refused")).Once()

		require.NoError(t, store.Append(ctx, "s2", "12:00"))
		assert.True(t, store.isDown.Load())

		// While down, primary is not retried.
		got, err := store.Slots(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, []string{"12:00"}, got)
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		store.isDown.Store(true)
		store.lastCheck = time.Now().Add(-2 * time.Minute)

		primary.On("Slots", ctx, "s3").Return([]string{"13:00"}, nil).Once()

		got, err := store.Slots(ctx, "s3")
		assert.NoError(t, err)
		assert.Equal(t, []string{"13:00"}, got)
		assert.False(t, store.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("ClearAllReachesFallback", func(t *testing.T) {
		require.NoError(t, fallback.Append(ctx, "s9", "17:00"))
		primary.On("ClearAll", ctx).Return(nil).Once()

		require.NoError(t, store.ClearAll(ctx))
		got, _ := fallback.Slots(ctx, "s9")
		assert.Empty(t, got)
		primary.AssertExpectations(t)
	})

	t.Run("RegisteredConsultsFallback", func(t *testing.T) {
		require.NoError(t, fallback.Register(ctx, "s10"))
		primary.On("Registered", ctx, "s10").Return(false, nil).Once()

		ok, err := store.Registered(ctx, "s10")
		require.NoError(t, err)
		assert.True(t, ok)
		primary.AssertExpectations(t)
	})
}

func TestManager(t *testing.T) {
	views := NewMemoryStore(time.Hour)
	m := NewManager(views)
	ctx := context.Background()

	s, err := m.Start(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	resumed, err := m.Resume(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, resumed.ID)

	_, err = m.Resume(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrUnknownSession)

	// Well-formed but never issued.
	_, err = m.Resume(ctx, "0b8f3a5e-2c1d-4e7f-9a6b-3d2c1e0f9a8b")
	assert.ErrorIs(t, err, ErrUnknownSession)

	require.NoError(t, views.Append(ctx, s.ID, "11:00"))
	require.NoError(t, m.End(ctx, s))
	got, err := views.Slots(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = m.Resume(ctx, s.ID)
	assert.ErrorIs(t, err, ErrUnknownSession)
}
