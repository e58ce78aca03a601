package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"antigravity2api-go/internal/config"
	"antigravity2api-go/internal/credential"
	"antigravity2api-go/internal/discovery"
	"antigravity2api-go/internal/logging"
	"antigravity2api-go/internal/oauth"
	"antigravity2api-go/internal/relay"
	"antigravity2api-go/internal/storage"
	"antigravity2api-go/internal/streaming"
	"antigravity2api-go/internal/translator"
	"antigravity2api-go/internal/upstream"
	"antigravity2api-go/internal/usage"
)

const (
	testAPIKey   = "sk-gw-test"
	testUser     = "admin"
	testPassword = "hunter2-long-enough"
)

func testEngine(t *testing.T, upstreamURL string) http.Handler {
	t.Helper()
	ctx := context.Background()

	cfg := config.Defaults()
	cfg.APIKey = testAPIKey
	cfg.PanelUser = testUser
	cfg.PanelPassword = testPassword

	backend := storage.NewFileBackend(t.TempDir())
	require.NoError(t, backend.Initialize(ctx))

	store := credential.NewStore(backend)
	require.NoError(t, store.Save(ctx, []*credential.Credential{{
		RefreshToken: "rt-1",
		AccessToken:  "at-1",
		ExpiresIn:    3600,
		IssuedAt:     time.Now().UnixMilli(),
		ProjectID:    "proj-1",
		Enabled:      true,
	}}))

	logs := usage.NewStore(backend, 100, 7)
	require.NoError(t, logs.Initialize(ctx))

	refresher := credential.RefresherFunc(func(context.Context, string) (credential.TokenUpdate, error) {
		t.Fatal("unexpected refresh")
		return credential.TokenUpdate{}, nil
	})
	pool := credential.NewPool(store, refresher, logs, 20)
	require.NoError(t, pool.Initialize(ctx))

	client := upstream.NewClient(upstream.WithEndpoint(upstreamURL + "/v1internal"))
	orch := relay.New(pool, client, translator.New(translator.DefaultOptions(), nil),
		streaming.NewEngine(nil), logs, 1)

	return NewEngine(cfg, Dependencies{
		Store:        store,
		Pool:         pool,
		OAuth:        oauth.NewClient("id", "secret"),
		Logs:         logs,
		Hub:          logging.GetHub(),
		Orchestrator: orch,
		Discovery:    discovery.New(client, pool, time.Minute),
		Sessions:     NewSessionStore(time.Hour),
	})
}

func upstreamStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"candidates":[{"content":{"parts":[{"text":"pong"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":1,"candidatesTokenCount":1,"totalTokenCount":2}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(h http.Handler, method, path, body string, decorate ...func(*http.Request)) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, fn := range decorate {
		fn(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func withAPIKey(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
}

func TestHealthNeedsNoAuth(t *testing.T) {
	h := testEngine(t, upstreamStub(t).URL)
	rec := do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.Bytes()
	assert.Equal(t, "ok", gjson.GetBytes(body, "status").String())
	assert.Equal(t, int64(1), gjson.GetBytes(body, "credentials.enabled").Int())
}

func TestAPISurfaceRequiresKey(t *testing.T) {
	h := testEngine(t, upstreamStub(t).URL)

	rec := do(h, http.MethodPost, "/v1/chat/completions", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/v1/chat/completions",
		`{"model":"gemini-2.5-flash","messages":[{"role":"user","content":"ping"}]}`, withAPIKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pong", gjson.GetBytes(rec.Body.Bytes(), "choices.0.message.content").String())
}

func TestForcedCredentialRoute(t *testing.T) {
	h := testEngine(t, upstreamStub(t).URL)

	rec := do(h, http.MethodPost, "/proj-1/v1/chat/completions",
		`{"model":"gemini-2.5-flash","messages":[{"role":"user","content":"ping"}]}`, withAPIKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPost, "/proj-unknown/v1/chat/completions",
		`{"model":"gemini-2.5-flash","messages":[{"role":"user","content":"ping"}]}`, withAPIKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGeminiActionRouting(t *testing.T) {
	h := testEngine(t, upstreamStub(t).URL)

	rec := do(h, http.MethodPost, "/v1beta/models/gemini-2.5-flash:generateContent",
		`{"contents":[{"role":"user","parts":[{"text":"ping"}]}]}`, withAPIKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pong",
		gjson.GetBytes(rec.Body.Bytes(), "candidates.0.content.parts.0.text").String())

	rec = do(h, http.MethodPost, "/v1beta/models/gemini-2.5-flash:embedContent", `{}`, withAPIKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClaudeMessagesRoute(t *testing.T) {
	h := testEngine(t, upstreamStub(t).URL)

	rec := do(h, http.MethodPost, "/v1/messages",
		`{"model":"gemini-2.5-flash","max_tokens":100,"messages":[{"role":"user","content":"ping"}]}`, withAPIKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pong", gjson.GetBytes(rec.Body.Bytes(), "content.0.text").String())

	rec = do(h, http.MethodPost, "/v1/messages/count_tokens",
		`{"model":"gemini-2.5-flash","messages":[{"role":"user","content":"hello world"}]}`, withAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Greater(t, gjson.GetBytes(rec.Body.Bytes(), "input_tokens").Int(), int64(0))
}

func TestModelsList(t *testing.T) {
	h := testEngine(t, upstreamStub(t).URL)
	rec := do(h, http.MethodGet, "/v1/models", "", withAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.Bytes()
	assert.Equal(t, "list", gjson.GetBytes(body, "object").String())
	assert.NotEmpty(t, gjson.GetBytes(body, "data").Array())
}

func TestPanelLoginFlow(t *testing.T) {
	h := testEngine(t, upstreamStub(t).URL)

	rec := do(h, http.MethodGet, "/auth/accounts", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/auth/login",
		`{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/auth/login",
		`{"username":"`+testUser+`","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := gjson.GetBytes(rec.Body.Bytes(), "token").String()
	require.NotEmpty(t, token)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "panel_session=")

	rec = do(h, http.MethodGet, "/auth/accounts", "", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := gjson.GetBytes(rec.Body.Bytes(), "accounts").Array()
	require.Len(t, accounts, 1)
	assert.Equal(t, "proj-1", accounts[0].Get("project_id").String())

	rec = do(h, http.MethodPost, "/auth/logout", "", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/auth/accounts", "", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPanelLogViews(t *testing.T) {
	h := testEngine(t, upstreamStub(t).URL)

	rec := do(h, http.MethodPost, "/auth/login",
		`{"username":"`+testUser+`","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	token := gjson.GetBytes(rec.Body.Bytes(), "token").String()
	asPanel := func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }

	rec = do(h, http.MethodPost, "/v1/chat/completions",
		`{"model":"gemini-2.5-flash","messages":[{"role":"user","content":"ping"}]}`, withAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/admin/logs?limit=10", "", asPanel)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := gjson.GetBytes(rec.Body.Bytes(), "logs").Array()
	require.Len(t, entries, 1)
	id := entries[0].Get("id").String()

	rec = do(h, http.MethodGet, "/admin/logs/"+id, "", asPanel)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.GetBytes(rec.Body.Bytes(), "detail.request").Exists())

	rec = do(h, http.MethodGet, "/admin/logs/usage?minutes=30", "", asPanel)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(30), gjson.GetBytes(rec.Body.Bytes(), "window_minutes").Int())

	rec = do(h, http.MethodPost, "/admin/logs/clear", "", asPanel)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/admin/logs?limit=10", "", asPanel)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, gjson.GetBytes(rec.Body.Bytes(), "logs").Array())
}

func TestUnconfiguredAPIKeyIsServiceUnavailable(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()
	cfg.PanelUser = testUser
	cfg.PanelPassword = testPassword

	backend := storage.NewFileBackend(t.TempDir())
	require.NoError(t, backend.Initialize(ctx))
	store := credential.NewStore(backend)
	logs := usage.NewStore(backend, 10, 7)
	require.NoError(t, logs.Initialize(ctx))
	pool := credential.NewPool(store, credential.RefresherFunc(
		func(context.Context, string) (credential.TokenUpdate, error) {
			return credential.TokenUpdate{}, nil
		}), logs, 20)
	require.NoError(t, pool.Initialize(ctx))

	client := upstream.NewClient()
	h := NewEngine(cfg, Dependencies{
		Store:        store,
		Pool:         pool,
		OAuth:        oauth.NewClient("id", "secret"),
		Logs:         logs,
		Hub:          logging.GetHub(),
		Orchestrator: relay.New(pool, client, translator.New(translator.DefaultOptions(), nil), streaming.NewEngine(nil), logs, 1),
		Discovery:    discovery.New(client, pool, time.Minute),
		Sessions:     NewSessionStore(time.Hour),
	})

	rec := do(h, http.MethodPost, "/v1/chat/completions", `{}`, withAPIKey)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
