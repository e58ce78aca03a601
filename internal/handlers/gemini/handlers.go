// Package gemini serves the Gemini-native surface. Gin cannot mix a path
// parameter with a literal colon in one segment, so the model segment arrives
// as "model:action" and is split here.
package gemini

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/handlers/common"
	"antigravity2api-go/internal/relay"
)

// Handler aggregates the dependencies of the Gemini surface.
type Handler struct {
	orch *relay.Orchestrator
}

func New(orch *relay.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// Dispatch serves POST /v1beta/models/:modelAction, routing on the action
// suffix after the colon.
func (h *Handler) Dispatch(c *gin.Context) {
	model, action, ok := strings.Cut(c.Param("modelAction"), ":")
	if !ok || model == "" {
		common.RespondError(c, apperrors.BadRequest("expected models/{model}:{action}"))
		return
	}
	switch action {
	case "generateContent":
		h.generate(c, model, false)
	case "streamGenerateContent":
		h.generate(c, model, true)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{
			"code":    http.StatusNotFound,
			"message": "unknown action :" + action,
			"status":  "NOT_FOUND",
		}})
	}
}

func (h *Handler) generate(c *gin.Context, model string, stream bool) {
	body, err := common.ReadBody(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	req := common.NewRelayRequest(c, relay.DialectGemini, body)
	req.Model = model
	req.Stream = stream
	h.orch.Handle(c.Request.Context(), c.Writer, req)
}
