package usage

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/storage"
)

func newTestStore(t *testing.T, maxItems, retentionDays int) *Store {
	t.Helper()
	backend := storage.NewFileBackend(t.TempDir())
	if err := backend.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := NewStore(backend, maxItems, retentionDays)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	s := newTestStore(t, 100, 7)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Append(ctx, &Entry{ProjectID: "p1", Success: true})
	}
	logs := s.RecentLogs(10)
	if len(logs) != 3 {
		t.Fatalf("got %d entries", len(logs))
	}
	// Newest first.
	if logs[0].ID != 3 || logs[1].ID != 2 || logs[2].ID != 1 {
		t.Fatalf("ids = %d, %d, %d", logs[0].ID, logs[1].ID, logs[2].ID)
	}
}

// Capacity: after maxItems+k appends exactly maxItems remain and the dropped
// entries are the oldest by id.
func TestCapacityDropsOldest(t *testing.T) {
	s := newTestStore(t, 5, 7)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		s.Append(ctx, &Entry{ProjectID: "p1"})
	}
	logs := s.RecentLogs(0)
	if len(logs) != 5 {
		t.Fatalf("retained %d entries, want 5", len(logs))
	}
	if logs[len(logs)-1].ID != 4 {
		t.Fatalf("oldest retained id = %d, want 4", logs[len(logs)-1].ID)
	}
}

func TestRetentionDropsStaleEntries(t *testing.T) {
	clock := time.Now()
	s := newTestStore(t, 100, 7)
	s.SetNowFunc(func() time.Time { return clock })

	ctx := context.Background()
	s.Append(ctx, &Entry{ProjectID: "old"})
	clock = clock.Add(8 * 24 * time.Hour)
	s.Append(ctx, &Entry{ProjectID: "new"})

	logs := s.RecentLogs(0)
	if len(logs) != 1 || logs[0].ProjectID != "new" {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestPersistAndReload(t *testing.T) {
	backend := storage.NewFileBackend(t.TempDir())
	ctx := context.Background()
	if err := backend.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	s := NewStore(backend, 100, 7)
	if err := s.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	s.Append(ctx, &Entry{ProjectID: "p1", Model: "gemini-2.5-flash", Success: true})

	reloaded := NewStore(backend, 100, 7)
	if err := reloaded.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if reloaded.Len() != 1 {
		t.Fatalf("reloaded %d entries", reloaded.Len())
	}
	// Ids continue after the persisted maximum.
	reloaded.Append(ctx, &Entry{ProjectID: "p1"})
	logs := reloaded.RecentLogs(1)
	if logs[0].ID != 2 {
		t.Fatalf("id after reload = %d, want 2", logs[0].ID)
	}
}

func TestInitializeCorruptDocument(t *testing.T) {
	backend := storage.NewFileBackend(t.TempDir())
	ctx := context.Background()
	if err := backend.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err := backend.Save(ctx, storage.KeyUsageLog, []byte("{nope")); err != nil {
		t.Fatal(err)
	}
	s := NewStore(backend, 100, 7)
	if err := s.Initialize(ctx); !apperrors.IsKind(err, apperrors.KindStorageCorrupt) {
		t.Fatalf("want StorageCorrupt, got %v", err)
	}
}

func TestRecentLogsStripsDetail(t *testing.T) {
	s := newTestStore(t, 100, 7)
	ctx := context.Background()
	s.Append(ctx, &Entry{
		ProjectID: "p1",
		Detail: &Detail{
			Request: &RequestSnapshot{Body: json.RawMessage(`{"model":"m"}`)},
		},
	})

	logs := s.RecentLogs(10)
	if logs[0].Detail != nil {
		t.Fatal("RecentLogs leaked detail")
	}
	full, ok := s.GetDetail(logs[0].ID)
	if !ok || full.Detail == nil || full.Detail.Request == nil {
		t.Fatalf("GetDetail = %+v, %v", full, ok)
	}
}

func TestHeaderRedaction(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("Cookie", "session=abc")
	h.Set("Content-Type", "application/json")

	out := SanitizeHeaders(h)
	if out["authorization"] != "[REDACTED]" {
		t.Fatalf("authorization = %q", out["authorization"])
	}
	if out["cookie"] != "[REDACTED]" {
		t.Fatalf("cookie = %q", out["cookie"])
	}
	if out["content-type"] != "application/json" {
		t.Fatalf("content-type = %q", out["content-type"])
	}
}

func TestUsageSummaryAndWindows(t *testing.T) {
	clock := time.Now()
	s := newTestStore(t, 100, 7)
	s.SetNowFunc(func() time.Time { return clock })

	ctx := context.Background()
	s.Append(ctx, &Entry{ProjectID: "p1", Success: true, Model: "gemini-2.5-flash"})
	s.Append(ctx, &Entry{ProjectID: "p1", Success: false, Model: "gemini-3-pro-high"})
	clock = clock.Add(90 * time.Minute)
	s.Append(ctx, &Entry{ProjectID: "p2", Success: true, Model: "gemini-2.5-flash"})

	summary := s.UsageSummary()
	p1 := summary["p1"]
	if p1 == nil || p1.Total != 2 || p1.Success != 1 || p1.Failed != 1 || len(p1.Models) != 2 {
		t.Fatalf("p1 = %+v", p1)
	}

	window := s.UsageWithinWindow(time.Hour)
	if window["p1"] != 0 || window["p2"] != 1 {
		t.Fatalf("window = %v", window)
	}
	if got := s.CountWithin("p2", time.Hour); got != 1 {
		t.Fatalf("CountWithin(p2) = %d", got)
	}
	if got := s.CountWithin("p1", 2*time.Hour); got != 2 {
		t.Fatalf("CountWithin(p1, 2h) = %d", got)
	}
}

func TestSummarizeStream(t *testing.T) {
	events := []json.RawMessage{
		json.RawMessage(`{"type":"thinking","content":"A"}`),
		json.RawMessage(`{"type":"text","content":"B"}`),
		json.RawMessage(`{"type":"text","content":"C"}`),
		json.RawMessage(`{"type":"tool_calls","tool_calls":[{"id":"call_1"}]}`),
	}
	summary := SummarizeStream(events)
	if summary.Text != "BC" || summary.Thinking != "A" {
		t.Fatalf("summary = %+v", summary)
	}
	if string(summary.ToolCalls) != `[{"id":"call_1"}]` {
		t.Fatalf("tool_calls = %s", summary.ToolCalls)
	}
}
