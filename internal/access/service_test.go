package access

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testLogger = zerolog.New(io.Discard)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService("smedu", "", time.Minute, &testLogger)
	require.NoError(t, err)
	return svc
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Authenticate("wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	g, err := svc.Authenticate("smedu")
	require.NoError(t, err)
	assert.NotEmpty(t, g.Token())
	assert.True(t, g.Admin(time.Now()))

	got, err := svc.Verify(g.Token())
	require.NoError(t, err)
	assert.Equal(t, g, got)
	assert.NoError(t, svc.Check(got))
}

func TestNewService_WithHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	svc, err := NewService("", string(hash), time.Minute, &testLogger)
	require.NoError(t, err)

	_, err = svc.Authenticate("hashed-secret")
	assert.NoError(t, err)

	_, err = NewService("", "not-a-hash", time.Minute, &testLogger)
	assert.Error(t, err)

	_, err = NewService("", "", time.Minute, &testLogger)
	assert.Error(t, err)
}

func TestVerify_Expiry(t *testing.T) {
	svc := newTestService(t)
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	g, err := svc.Authenticate("smedu")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = svc.Verify(g.Token())
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = svc.Verify(g.Token())
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestRevoke(t *testing.T) {
	svc := newTestService(t)
	g, err := svc.Authenticate("smedu")
	require.NoError(t, err)

	svc.Revoke(g.Token())
	_, err = svc.Verify(g.Token())
	assert.ErrorIs(t, err, ErrUnknownToken)

	err = svc.Check(g)
	assert.True(t, IsDenied(err))
}

func TestCheck_ZeroGrant(t *testing.T) {
	svc := newTestService(t)

	err := svc.Check(Grant{})
	require.Error(t, err)
	assert.True(t, IsDenied(err))
	assert.True(t, IsDenied(fmt.Errorf("cancel: %w", err)))
	assert.False(t, IsDenied(ErrInvalidPassword))
}
