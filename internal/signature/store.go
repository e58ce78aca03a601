// Package signature remembers the opaque thoughtSignature tokens that
// chain-of-thought upstream models return, so they can be echoed back when
// the same turn reappears as conversation history.
package signature

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// MinValidLength filters out placeholder signatures the upstream sometimes
// emits; anything shorter is not worth caching.
const MinValidLength = 16

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	mdImageRe    = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
)

// Normalize reduces assistant text to the stable key used for signature
// lookup: think blocks, markdown images and carriage returns stripped,
// surrounding whitespace trimmed.
func Normalize(text string) string {
	text = thinkBlockRe.ReplaceAllString(text, "")
	text = mdImageRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\r", "")
	return strings.TrimSpace(text)
}

type textEntry struct {
	signature string
	original  string
	storedAt  time.Time
}

// Store holds the two best-effort signature maps: tool-call id to
// signature, and normalized text to signature plus the original text.
// Entries are small and bounded by client session size; a periodic sweep
// drops stale ones anyway.
type Store struct {
	mu         sync.RWMutex
	byToolCall map[string]string
	toolCallAt map[string]time.Time
	byText     map[string]textEntry
	ttl        time.Duration
	now        func() time.Time
}

// NewStore creates a signature store. ttl <= 0 disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		byToolCall: make(map[string]string),
		toolCallAt: make(map[string]time.Time),
		byText:     make(map[string]textEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

// SetToolCall remembers the signature attached to a tool call.
func (s *Store) SetToolCall(id, sig string) {
	if id == "" || len(sig) < MinValidLength {
		return
	}
	s.mu.Lock()
	s.byToolCall[id] = sig
	s.toolCallAt[id] = s.now()
	s.mu.Unlock()
}

// ToolCall returns the cached signature for a tool-call id.
func (s *Store) ToolCall(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.byToolCall[id]
	return sig, ok
}

// SetText remembers the signature attached to a block of emitted text,
// keyed by its normalized form.
func (s *Store) SetText(text, sig string) {
	if len(sig) < MinValidLength {
		return
	}
	key := Normalize(text)
	if key == "" {
		return
	}
	s.mu.Lock()
	s.byText[key] = textEntry{signature: sig, original: text, storedAt: s.now()}
	s.mu.Unlock()
}

// LookupText resolves a signature for assistant text replayed as history:
// exact match first, then trimmed, then fully normalized.
func (s *Store) LookupText(text string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range []string{text, strings.TrimSpace(text), Normalize(text)} {
		if key == "" {
			continue
		}
		if entry, ok := s.byText[key]; ok {
			return entry.signature, true
		}
	}
	return "", false
}

// Len reports stored entries across both maps.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byToolCall) + len(s.byText)
}

// Sweep drops entries older than the TTL. No-op when expiry is disabled.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.toolCallAt {
		if at.Before(cutoff) {
			delete(s.byToolCall, id)
			delete(s.toolCallAt, id)
			removed++
		}
	}
	for key, entry := range s.byText {
		if entry.storedAt.Before(cutoff) {
			delete(s.byText, key)
			removed++
		}
	}
	return removed
}
