// Package credential owns the single persisted bearer token. Backends may
// fail; the Store in front of them never does. When persistence is
// unavailable, Get reports no token and Set/Clear do nothing.
package credential

import (
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by backends when no token is stored.
var ErrNotFound = errors.New("no stored token")

// Backend is a persistent key-value slot holding one token.
type Backend interface {
	Load() (string, error)
	Save(token string) error
	Delete() error
}

// Store is the failure-free facade over a Backend. A nil *Store, or a Store
// without a backend, behaves like an unavailable storage environment.
type Store struct {
	backend Backend
	logger  zerolog.Logger
}

// New wraps backend. A nil backend yields an always-empty store.
func New(backend Backend, logger zerolog.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logger.With().Str("component", "credential").Logger(),
	}
}

// Unavailable returns a store for environments without persistent storage.
func Unavailable() *Store {
	return &Store{logger: zerolog.Nop()}
}

// Get returns the stored token, or false when there is none or the backend
// cannot be read.
func (s *Store) Get() (string, bool) {
	if s == nil || s.backend == nil {
		return "", false
	}

	token, err := s.backend.Load()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Msg("Failed to load token, treating as absent")
		}
		return "", false
	}
	if token == "" {
		return "", false
	}
	return token, true
}

// Set persists token, replacing any previous one.
func (s *Store) Set(token string) {
	if s == nil || s.backend == nil {
		return
	}

	if err := s.backend.Save(token); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to save token")
	}
}

// Clear removes the stored token. Clearing an empty store is a no-op.
func (s *Store) Clear() {
	if s == nil || s.backend == nil {
		return
	}

	if err := s.backend.Delete(); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn().Err(err).Msg("Failed to delete token")
	}
}

// Close releases backend resources such as network connections. Backends
// without any are left alone. The store must not be used afterwards.
func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}

	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
