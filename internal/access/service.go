// Package access gates admin operations behind a password and issues
// short-lived capability grants.
package access

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrTokenExpired    = errors.New("admin token expired")
	ErrUnknownToken    = errors.New("unknown admin token")
)

// Grant is proof of a successful admin login. The zero value grants nothing.
type Grant struct {
	token     string
	expiresAt time.Time
}

// Token returns the bearer token for the grant.
func (g Grant) Token() string {
	return g.token
}

func (g Grant) ExpiresAt() time.Time {
	return g.expiresAt
}

// Admin reports whether the grant is an unexpired admin capability at now.
func (g Grant) Admin(now time.Time) bool {
	return g.token != "" && now.Before(g.expiresAt)
}

// Service authenticates the admin and tracks live grants.
type Service struct {
	hash   []byte
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu     sync.Mutex
	grants map[string]Grant
}

// NewService accepts either a plaintext password (hashed here) or a bcrypt hash.
func NewService(password, passwordHash string, ttl time.Duration, logger *zerolog.Logger) (*Service, error) {
	var hash []byte
	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("admin password hash: %w", err)
		}
		hash = []byte(passwordHash)
	case password != "":
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		hash = h
	default:
		return nil, errors.New("admin password is not configured")
	}

	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &Service{
		hash:   hash,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "access").Logger(),
		grants: make(map[string]Grant),
	}, nil
}

// Authenticate checks the password and issues a grant.
func (s *Service) Authenticate(password string) (Grant, error) {
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(password)); err != nil {
		s.logger.Warn().Msg("admin login rejected")
		return Grant{}, ErrInvalidPassword
	}

	g := Grant{token: uuid.NewString(), expiresAt: s.now().Add(s.ttl)}

	s.mu.Lock()
	s.pruneLocked()
	s.grants[g.token] = g
	s.mu.Unlock()

	s.logger.Info().Time("expires_at", g.expiresAt).Msg("admin logged in")
	return g, nil
}

// Verify resolves a bearer token to its grant.
func (s *Service) Verify(token string) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[token]
	if !ok {
		return Grant{}, ErrUnknownToken
	}
	if !g.Admin(s.now()) {
		delete(s.grants, token)
		return Grant{}, ErrTokenExpired
	}
	return g, nil
}

// Revoke de-authenticates the token; unknown tokens are ignored.
func (s *Service) Revoke(token string) {
	s.mu.Lock()
	_, ok := s.grants[token]
	delete(s.grants, token)
	s.mu.Unlock()

	if ok {
		s.logger.Info().Msg("admin logged out")
	}
}

// Check returns a DeniedError unless g is a live admin grant.
func (s *Service) Check(g Grant) error {
	if !g.Admin(s.now()) {
		return &DeniedError{Reason: "admin login required"}
	}
	s.mu.Lock()
	_, ok := s.grants[g.token]
	s.mu.Unlock()
	if !ok {
		return &DeniedError{Reason: "admin session ended"}
	}
	return nil
}

func (s *Service) pruneLocked() {
	now := s.now()
	for token, g := range s.grants {
		if !g.Admin(now) {
			delete(s.grants, token)
		}
	}
}

// DeniedError is returned when an admin operation is attempted without a grant.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return e.Reason
}

// IsDenied checks if err is an access denial.
func IsDenied(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied)
}
