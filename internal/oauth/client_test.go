package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "antigravity2api-go/internal/errors"
)

func TestBuildAuthURL(t *testing.T) {
	client := NewClient("id", "secret")
	raw := client.BuildAuthURL("http://localhost:8045/callback", "state-123")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth URL: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "id" {
		t.Fatalf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("access_type") != "offline" {
		t.Fatalf("access_type = %q, want offline", q.Get("access_type"))
	}
	if q.Get("prompt") != "consent" {
		t.Fatalf("prompt = %q, want consent", q.Get("prompt"))
	}
	if q.Get("state") != "state-123" {
		t.Fatalf("state = %q", q.Get("state"))
	}
	if !strings.Contains(q.Get("scope"), "cloud-platform") {
		t.Fatalf("scope = %q, want cloud-platform", q.Get("scope"))
	}
}

func TestRefreshSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Fatalf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "rt" {
			t.Fatalf("refresh_token = %q", r.PostForm.Get("refresh_token"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh","expires_in":1799}`))
	}))
	defer srv.Close()

	client := NewClient("id", "secret", WithEndpoints("", srv.URL, "", ""))
	tok, err := client.Refresh(context.Background(), "rt")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if tok.AccessToken != "fresh" || tok.ExpiresIn != 1799 {
		t.Fatalf("token = %+v", tok)
	}
}

func TestRefreshTerminalStatuses(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"invalid_grant"}`))
		}))
		client := NewClient("id", "secret", WithEndpoints("", srv.URL, "", ""))
		_, err := client.Refresh(context.Background(), "rt")
		srv.Close()
		if !apperrors.IsKind(err, apperrors.KindUpstreamTerminal) {
			t.Fatalf("status %d: want KindUpstreamTerminal, got %v", status, err)
		}
	}
}

func TestRefreshTransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("id", "secret", WithEndpoints("", srv.URL, "", ""))
	_, err := client.Refresh(context.Background(), "rt")
	if !apperrors.IsKind(err, apperrors.KindUpstreamTransient) {
		t.Fatalf("want KindUpstreamTransient, got %v", err)
	}
}

func TestResolveProjectIDFromResourceManager(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/projects" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer at" {
			t.Fatalf("Authorization = %q", got)
		}
		w.Write([]byte(`{"projects":[` +
			`{"projectId":"proj-dead","lifecycleState":"DELETE_REQUESTED"},` +
			`{"projectId":"proj-rm","lifecycleState":"ACTIVE"}]}`))
	}))
	defer srv.Close()

	client := NewClient("id", "secret", WithProjectsURL(srv.URL+"/v1/projects"))
	id, err := client.ResolveProjectID(context.Background(), "at")
	if err != nil {
		t.Fatalf("ResolveProjectID: %v", err)
	}
	if id != "proj-rm" {
		t.Fatalf("id = %q", id)
	}
}

func TestResolveProjectIDFromLoadCodeAssist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/projects":
			w.Write([]byte(`{"projects":[]}`))
		case strings.HasSuffix(r.URL.Path, ":loadCodeAssist"):
			w.Write([]byte(`{"cloudaicompanionProject":"proj-from-assist"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient("id", "secret",
		WithEndpoints("", "", "", srv.URL+"/v1internal"),
		WithProjectsURL(srv.URL+"/v1/projects"))
	id, err := client.ResolveProjectID(context.Background(), "at")
	if err != nil {
		t.Fatalf("ResolveProjectID: %v", err)
	}
	if id != "proj-from-assist" {
		t.Fatalf("id = %q", id)
	}
}

func TestResolveProjectIDObjectShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/projects" {
			w.Write([]byte(`{"projects":[]}`))
			return
		}
		w.Write([]byte(`{"cloudaicompanionProject":{"id":"proj-obj"}}`))
	}))
	defer srv.Close()

	client := NewClient("id", "secret",
		WithEndpoints("", "", "", srv.URL+"/v1internal"),
		WithProjectsURL(srv.URL+"/v1/projects"))
	id, err := client.ResolveProjectID(context.Background(), "at")
	if err != nil {
		t.Fatalf("ResolveProjectID: %v", err)
	}
	if id != "proj-obj" {
		t.Fatalf("id = %q", id)
	}
}

func TestResolveProjectIDViaOnboardPolling(t *testing.T) {
	var onboardCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/projects":
			w.Write([]byte(`{"projects":[]}`))
		case strings.HasSuffix(r.URL.Path, ":loadCodeAssist"):
			w.Write([]byte(`{"allowedTiers":[{"id":"free-tier","isDefault":true}]}`))
		case strings.HasSuffix(r.URL.Path, ":onboardUser"):
			n := atomic.AddInt32(&onboardCalls, 1)
			if n < 2 {
				w.Write([]byte(`{"done":false}`))
				return
			}
			w.Write([]byte(`{"done":true,"response":{"cloudaicompanionProject":{"id":"proj-onboard"}}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient("id", "secret",
		WithEndpoints("", "", "", srv.URL+"/v1internal"),
		WithProjectsURL(srv.URL+"/v1/projects"),
		WithPollInterval(time.Millisecond))
	id, err := client.ResolveProjectID(context.Background(), "at")
	if err != nil {
		t.Fatalf("ResolveProjectID: %v", err)
	}
	if id != "proj-onboard" {
		t.Fatalf("id = %q", id)
	}
	if atomic.LoadInt32(&onboardCalls) != 2 {
		t.Fatalf("onboard called %d times, want 2", onboardCalls)
	}
}

func TestResolveProjectIDMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("id", "secret",
		WithEndpoints("", "", "", srv.URL+"/v1internal"),
		WithProjectsURL(srv.URL+"/v1/projects"),
		WithPollInterval(time.Millisecond))
	_, err := client.ResolveProjectID(context.Background(), "at")
	if !apperrors.IsKind(err, apperrors.KindProjectIDMissing) {
		t.Fatalf("want ProjectIDMissing, got %v", err)
	}

	random := NewClient("id", "secret",
		WithEndpoints("", "", "", srv.URL+"/v1internal"),
		WithProjectsURL(srv.URL+"/v1/projects"),
		WithPollInterval(time.Millisecond),
		WithAllowRandomProjectID(true))
	id, err := random.ResolveProjectID(context.Background(), "at")
	if err != nil {
		t.Fatalf("allow-random resolve: %v", err)
	}
	if !strings.HasPrefix(id, "synthetic-") {
		t.Fatalf("synthetic id = %q", id)
	}
}

func TestFetchUserEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at" {
			t.Fatalf("Authorization = %q", got)
		}
		w.Write([]byte(`{"email":"dev@example.com"}`))
	}))
	defer srv.Close()

	client := NewClient("id", "secret", WithEndpoints("", "", srv.URL, ""))
	email, err := client.FetchUserEmail(context.Background(), "at")
	if err != nil {
		t.Fatalf("FetchUserEmail: %v", err)
	}
	if email != "dev@example.com" {
		t.Fatalf("email = %q", email)
	}
}

func TestParseCallbackURL(t *testing.T) {
	code, state, err := ParseCallbackURL("http://localhost:8045/callback?code=abc&state=xyz")
	if err != nil {
		t.Fatalf("ParseCallbackURL: %v", err)
	}
	if code != "abc" || state != "xyz" {
		t.Fatalf("code=%q state=%q", code, state)
	}
	if _, _, err := ParseCallbackURL("http://localhost/callback?state=only"); err == nil {
		t.Fatal("expected error for URL without code")
	}
}
