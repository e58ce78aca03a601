package server

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"antigravity2api-go/internal/constants"
)

// SessionStore keeps panel sessions in memory: opaque random tokens mapped to
// their expiry. Sessions do not survive a restart, which is acceptable for an
// operator panel.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = constants.PanelSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create mints a new session token.
func (s *SessionStore) Create() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("session token entropy unavailable: " + err.Error())
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	s.sweepLocked()
	s.sessions[token] = s.now().Add(s.ttl)
	s.mu.Unlock()
	return token
}

// Validate reports whether the token names a live session.
func (s *SessionStore) Validate(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.sessions[token]
	if !ok {
		return false
	}
	if s.now().After(expiry) {
		delete(s.sessions, token)
		return false
	}
	return true
}

// Delete revokes a session; unknown tokens are a no-op.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func (s *SessionStore) sweepLocked() {
	now := s.now()
	for token, expiry := range s.sessions {
		if now.After(expiry) {
			delete(s.sessions, token)
		}
	}
}
