package management

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"antigravity2api-go/internal/config"
	"antigravity2api-go/internal/credential"
	"antigravity2api-go/internal/logging"
	"antigravity2api-go/internal/oauth"
	"antigravity2api-go/internal/storage"
	"antigravity2api-go/internal/usage"
)

func testHandler(t *testing.T) (*Handler, *credential.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	backend := storage.NewFileBackend(t.TempDir())
	require.NoError(t, backend.Initialize(ctx))

	store := credential.NewStore(backend)
	require.NoError(t, store.Save(ctx, []*credential.Credential{{
		RefreshToken: "rt-existing",
		AccessToken:  "at-existing",
		ExpiresIn:    3600,
		IssuedAt:     time.Now().UnixMilli(),
		ProjectID:    "proj-existing",
		Enabled:      true,
	}}))

	logs := usage.NewStore(backend, 10, 7)
	require.NoError(t, logs.Initialize(ctx))

	refresher := credential.RefresherFunc(func(context.Context, string) (credential.TokenUpdate, error) {
		t.Fatal("unexpected refresh")
		return credential.TokenUpdate{}, nil
	})
	pool := credential.NewPool(store, refresher, logs, 20)
	require.NoError(t, pool.Initialize(ctx))

	h := New(config.Defaults(), store, pool, oauth.NewClient("id", "secret"), logs, logging.GetHub())
	return h, store
}

func postTOML(h *Handler, target, body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/auth/accounts/import-toml", h.ImportTOML)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const importDoc = `
[[accounts]]
refresh_token = "rt-a"
project_id = "proj-a"

[[accounts]]
refresh_token = "rt-b"
project_id = "proj-b"

[[accounts]]
refresh_token = "rt-off"
disabled = true
`

func TestImportTOMLMergeWithFilter(t *testing.T) {
	h, store := testHandler(t)

	rec := postTOML(h, "/auth/accounts/import-toml?filter_disabled=true&replace_existing=false", importDoc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.Bytes()
	assert.Equal(t, int64(2), gjson.GetBytes(body, "imported").Int())
	assert.Equal(t, int64(1), gjson.GetBytes(body, "skipped").Int())
	assert.Equal(t, int64(3), gjson.GetBytes(body, "total").Int())

	list, err := store.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "rt-existing", list[0].RefreshToken)
	assert.Equal(t, "proj-existing", list[0].ProjectID)
	assert.Equal(t, "rt-a", list[1].RefreshToken)
	assert.Equal(t, "rt-b", list[2].RefreshToken)
}

func TestImportTOMLOverlaysByRefreshToken(t *testing.T) {
	h, store := testHandler(t)

	doc := "[[accounts]]\nrefresh_token = \"rt-existing\"\nemail = \"dev@example.com\"\nproject_id = \"proj-other\"\n"
	rec := postTOML(h, "/auth/accounts/import-toml?replace_existing=false", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), gjson.GetBytes(rec.Body.Bytes(), "total").Int())

	list, err := store.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "dev@example.com", list[0].Email)
	// A set project id is never overwritten by an import.
	assert.Equal(t, "proj-existing", list[0].ProjectID)
}

func TestImportTOMLReplaceExisting(t *testing.T) {
	h, store := testHandler(t)

	doc := "[[accounts]]\nrefresh_token = \"rt-only\"\nproject_id = \"proj-only\"\n"
	rec := postTOML(h, "/auth/accounts/import-toml?replace_existing=true", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.Bytes()
	assert.Equal(t, int64(1), gjson.GetBytes(body, "imported").Int())
	assert.Equal(t, int64(1), gjson.GetBytes(body, "total").Int())

	list, err := store.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "rt-only", list[0].RefreshToken)
}

func TestImportTOMLRejectsBadDocument(t *testing.T) {
	h, store := testHandler(t)

	rec := postTOML(h, "/auth/accounts/import-toml", "[[accounts]]\naccess_token = \"no-refresh\"\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	list, err := store.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
