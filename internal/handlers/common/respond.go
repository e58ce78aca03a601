// Package common holds the request plumbing shared by the dialect handlers.
package common

import (
	"io"

	"github.com/gin-gonic/gin"

	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/httpformat"
	"antigravity2api-go/internal/relay"
)

// maxRequestBody caps inbound chat bodies at 32 MiB.
const maxRequestBody = 32 << 20

// ReadBody drains the request body with a size cap.
func ReadBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody))
	if err != nil {
		return nil, apperrors.BadRequest("unable to read request body")
	}
	if len(body) == 0 {
		return nil, apperrors.BadRequest("request body is empty")
	}
	return body, nil
}

// RespondError writes err in the dialect matching the request path.
func RespondError(c *gin.Context, err error) {
	apiErr := apperrors.AsAPIError(err)
	format := httpformat.DetectFromContext(c)
	c.Data(apiErr.HTTPStatus, "application/json", apiErr.ToJSON(format))
	c.Abort()
}

// NewRelayRequest assembles the orchestrator request for one inbound call.
func NewRelayRequest(c *gin.Context, dialect relay.Dialect, body []byte) *relay.Request {
	return &relay.Request{
		Dialect:         dialect,
		Body:            body,
		ForcedProjectID: c.Param("credential"),
		Headers:         c.Request.Header.Clone(),
		Method:          c.Request.Method,
		Path:            c.Request.URL.Path,
	}
}
