// Package middleware holds the gin middleware shared by the API and panel
// surfaces: API-key gate, panel session gate, request logging, recovery, and
// request tracing.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/httpformat"
)

// apiKeyHeaders are the header names the key is accepted from, in order,
// after the Authorization header.
var apiKeyHeaders = []string{"x-api-key", "api-key", "x-api_key", "api_key"}

// APIKeyAuth gates the inference surfaces behind the shared API key. An
// unconfigured key rejects everything with 503; a wrong or missing key is 401.
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.AuthMissing())
			return
		}
		if extractAPIKey(c) != apiKey {
			abortWithError(c, apperrors.AuthInvalid())
			return
		}
		c.Next()
	}
}

// extractAPIKey pulls the presented key from the Authorization header (with
// or without the Bearer prefix) or any of the accepted API-key headers.
func extractAPIKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			return strings.TrimSpace(auth[7:])
		}
		return strings.TrimSpace(auth)
	}
	for _, name := range apiKeyHeaders {
		if v := c.GetHeader(name); v != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func abortWithError(c *gin.Context, apiErr *apperrors.APIError) {
	format := httpformat.DetectFromContext(c)
	c.Data(apiErr.HTTPStatus, "application/json", apiErr.ToJSON(format))
	c.Abort()
}
