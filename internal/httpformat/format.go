// Package httpformat decides which client dialect an error response should be
// shaped in, based on the request path.
package httpformat

import (
	"net/http"
	"strings"

	apperrors "antigravity2api-go/internal/errors"
	"github.com/gin-gonic/gin"
)

// DetectFromContext determines the error format from the gin context path.
func DetectFromContext(c *gin.Context) apperrors.ErrorFormat {
	if c == nil {
		return apperrors.FormatOpenAI
	}
	if path := c.FullPath(); path != "" {
		return DetectFromPath(path)
	}
	return DetectFromRequest(c.Request)
}

// DetectFromRequest determines the error format from an HTTP request.
func DetectFromRequest(r *http.Request) apperrors.ErrorFormat {
	if r == nil || r.URL == nil {
		return apperrors.FormatOpenAI
	}
	return DetectFromPath(r.URL.Path)
}

// DetectFromPath determines the error format from a raw path string.
func DetectFromPath(path string) apperrors.ErrorFormat {
	path = strings.ToLower(path)
	switch {
	case strings.Contains(path, "/v1beta/") ||
		strings.Contains(path, ":generatecontent") ||
		strings.Contains(path, ":streamgeneratecontent") ||
		strings.Contains(path, ":counttokens"):
		return apperrors.FormatGemini
	case strings.Contains(path, "/v1/messages"):
		return apperrors.FormatClaude
	default:
		return apperrors.FormatOpenAI
	}
}
