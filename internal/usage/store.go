package usage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/storage"
)

// document is the persisted shape of the log store.
type document struct {
	Logs          []*Entry `json:"logs"`
	MaxItems      int      `json:"maxItems"`
	RetentionDays int      `json:"retentionDays"`
}

// Store is the append-only capped request log. Entries are kept oldest-first
// in memory; ids increase monotonically across restarts.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend

	entries       []*Entry
	nextID        int64
	maxItems      int
	retentionDays int
	now           func() time.Time

	saveMu sync.Mutex
}

// NewStore creates a log store over the given backend. Non-positive limits
// fall back to the caller's configured defaults upstream; here they mean
// "unbounded" and "no retention sweep" respectively.
func NewStore(backend storage.Backend, maxItems, retentionDays int) *Store {
	return &Store{
		backend:       backend,
		nextID:        1,
		maxItems:      maxItems,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Initialize loads the persisted log. A missing document is an empty log; a
// malformed one fails with StorageCorrupt.
func (s *Store) Initialize(ctx context.Context) error {
	data, err := s.backend.Load(ctx, storage.KeyUsageLog)
	if storage.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return apperrors.StorageCorrupt(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = doc.Logs
	for _, e := range s.entries {
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	return nil
}

// Append assigns an id, enforces capacity and retention, and persists. The
// write to the backend happens outside the entry lock.
func (s *Store) Append(ctx context.Context, entry *Entry) {
	s.mu.Lock()
	entry.ID = s.nextID
	s.nextID++
	if entry.Timestamp == 0 {
		entry.Timestamp = s.now().UnixMilli()
	}
	s.entries = append(s.entries, entry)
	s.pruneLocked()
	data := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, data)
}

// pruneLocked drops entries beyond capacity (oldest first) and past retention.
func (s *Store) pruneLocked() {
	if s.retentionDays > 0 {
		cutoff := s.now().AddDate(0, 0, -s.retentionDays).UnixMilli()
		kept := s.entries[:0]
		for _, e := range s.entries {
			if e.Timestamp >= cutoff {
				kept = append(kept, e)
			}
		}
		s.entries = kept
	}
	if s.maxItems > 0 && len(s.entries) > s.maxItems {
		s.entries = append([]*Entry(nil), s.entries[len(s.entries)-s.maxItems:]...)
	}
}

func (s *Store) snapshotLocked() []byte {
	doc := document{Logs: s.entries, MaxItems: s.maxItems, RetentionDays: s.retentionDays}
	data, err := json.Marshal(doc)
	if err != nil {
		log.WithError(err).Error("marshal usage log")
		return nil
	}
	return data
}

func (s *Store) persist(ctx context.Context, data []byte) {
	if data == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.backend.Save(ctx, storage.KeyUsageLog, data); err != nil {
		log.WithError(err).Error("persist usage log")
	}
}

// RecentLogs returns up to limit entries, newest first, without details.
func (s *Store) RecentLogs(limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		e := *s.entries[i]
		e.Detail = nil
		out = append(out, e)
	}
	return out
}

// GetDetail returns the full entry for an id.
func (s *Store) GetDetail(id int64) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			copied := *e
			return &copied, true
		}
	}
	return nil, false
}

// Clear truncates the log in memory and on disk. Ids keep increasing.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.entries = nil
	data := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, data)
}

// UsageSummary aggregates per-project totals over the retained window.
func (s *Store) UsageSummary() map[string]*ProjectUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	out := make(map[string]*ProjectUsage)
	for _, e := range s.entries {
		if e.ProjectID == "" {
			continue
		}
		u := out[e.ProjectID]
		if u == nil {
			u = &ProjectUsage{}
			out[e.ProjectID] = u
		}
		u.Total++
		if e.Success {
			u.Success++
		} else {
			u.Failed++
		}
		if e.Timestamp > u.LastUsedAt {
			u.LastUsedAt = e.Timestamp
		}
		if e.Model != "" && !containsString(u.Models, e.Model) {
			u.Models = append(u.Models, e.Model)
		}
	}
	for _, u := range out {
		sort.Strings(u.Models)
	}
	return out
}

// UsageWithinWindow counts per-project entries in the trailing window.
func (s *Store) UsageWithinWindow(window time.Duration) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-window).UnixMilli()
	out := make(map[string]int)
	for _, e := range s.entries {
		if e.ProjectID != "" && e.Timestamp > cutoff {
			out[e.ProjectID]++
		}
	}
	return out
}

// CountWithin counts one project's entries in the trailing window. This is
// the credential pool's window-counter view of the log.
func (s *Store) CountWithin(projectID string, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-window).UnixMilli()
	n := 0
	for _, e := range s.entries {
		if e.ProjectID == projectID && e.Timestamp > cutoff {
			n++
		}
	}
	return n
}

// Len reports the retained entry count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
