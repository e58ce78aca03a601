package errors

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestTaxonomyKinds(t *testing.T) {
	assert.Equal(t, KindBadRequest, BadRequest("x").Kind)
	assert.Equal(t, http.StatusServiceUnavailable, AuthMissing().HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, AuthInvalid().HTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, NoCredentialAvailable("").HTTPStatus)
	assert.Equal(t, http.StatusNotFound, CredentialNotFound("p").HTTPStatus)
	assert.Equal(t, "project_id_missing", ProjectIDMissing().Code)
}

func TestToJSONFormats(t *testing.T) {
	apiErr := AuthInvalid()

	openai := apiErr.ToJSON(FormatOpenAI)
	assert.Equal(t, "Invalid API key", gjson.GetBytes(openai, "error.message").String())
	assert.Equal(t, "authentication_error", gjson.GetBytes(openai, "error.type").String())

	claude := apiErr.ToJSON(FormatClaude)
	assert.Equal(t, "error", gjson.GetBytes(claude, "type").String())
	assert.Equal(t, "authentication_error", gjson.GetBytes(claude, "error.type").String())

	gemini := apiErr.ToJSON(FormatGemini)
	assert.Equal(t, int64(401), gjson.GetBytes(gemini, "error.code").Int())
	assert.Equal(t, "UNAUTHENTICATED", gjson.GetBytes(gemini, "error.status").String())
}

func TestMapUpstreamStatusRetryable(t *testing.T) {
	retry := []int{429, 500}

	apiErr := MapUpstreamStatus(429, []byte(`{"error":{"message":"quota"}}`), http.Header{"Retry-After": []string{"7"}}, retry)
	assert.Equal(t, KindUpstreamTransient, apiErr.Kind)
	assert.Equal(t, "quota", apiErr.Message)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)

	apiErr = MapUpstreamStatus(500, nil, nil, retry)
	assert.Equal(t, KindUpstreamTransient, apiErr.Kind)

	apiErr = MapUpstreamStatus(403, []byte(`{"error":{"message":"revoked"}}`), nil, retry)
	assert.Equal(t, KindUpstreamTerminal, apiErr.Kind)

	apiErr = MapUpstreamStatus(404, nil, nil, retry)
	assert.Equal(t, KindUpstreamOther, apiErr.Kind)
	assert.Equal(t, 404, apiErr.HTTPStatus)
}

func TestRetryDelayFromBodyDetail(t *testing.T) {
	body := []byte(`{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"2.5s"}]}}`)
	apiErr := MapUpstreamStatus(429, body, nil, []int{429})
	require.Equal(t, KindUpstreamTransient, apiErr.Kind)
	assert.Equal(t, 2500*time.Millisecond, apiErr.RetryAfter)
}

func TestMapNetworkErrorCancellation(t *testing.T) {
	apiErr := MapNetworkError(context.Canceled)
	assert.Equal(t, KindUpstreamOther, apiErr.Kind)
	assert.Equal(t, "request_canceled", apiErr.Code)

	apiErr = MapNetworkError(context.DeadlineExceeded)
	assert.Equal(t, KindUpstreamTransient, apiErr.Kind)
}

func TestIsKindThroughWrapping(t *testing.T) {
	wrapped := wrapForTest(NoCredentialAvailable("all busy"))
	assert.True(t, IsKind(wrapped, KindNoCredentialAvailable))
	assert.False(t, IsKind(wrapped, KindBadRequest))
	assert.Equal(t, KindNoCredentialAvailable, AsAPIError(wrapped).Kind)
}

func wrapForTest(err error) error {
	return &wrapper{err}
}

type wrapper struct{ inner error }

func (w *wrapper) Error() string { return "wrapped: " + w.inner.Error() }
func (w *wrapper) Unwrap() error { return w.inner }
