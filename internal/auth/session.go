// Package auth implements the in-process session store, login rate
// limiter, XSRF token, and password check described in spec.md §4.13 and
// §5's "Sessions & XSRF state" component. Sessions are intentionally
// volatile: a process restart invalidates every token by design.
package auth

import (
	"sync"

	"github.com/google/uuid"
)

// SessionStore is an in-memory set of opaque session tokens, guarded by a
// mutex. Lost on process restart.
type SessionStore struct {
	mu     sync.Mutex
	tokens map[string]struct{}
}

// NewSessionStore constructs an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{tokens: make(map[string]struct{})}
}

// Create mints a fresh cryptographically random session token and records
// it as valid.
func (s *SessionStore) Create() string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = struct{}{}
	s.mu.Unlock()
	return token
}

// Valid reports whether token is a live session.
func (s *SessionStore) Valid(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[token]
	return ok
}

// Revoke removes token from the store (logout).
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}
