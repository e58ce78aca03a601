// Package openai serves the OpenAI-compatible surface: chat completions and
// the model list.
package openai

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"antigravity2api-go/internal/discovery"
	"antigravity2api-go/internal/handlers/common"
	"antigravity2api-go/internal/relay"
)

// Handler aggregates the dependencies of the OpenAI surface.
type Handler struct {
	orch *relay.Orchestrator
	disc *discovery.Service
}

func New(orch *relay.Orchestrator, disc *discovery.Service) *Handler {
	return &Handler{orch: orch, disc: disc}
}

// ChatCompletions serves POST /v1/chat/completions and the forced-credential
// variant POST /:credential/v1/chat/completions.
func (h *Handler) ChatCompletions(c *gin.Context) {
	body, err := common.ReadBody(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	h.orch.Handle(c.Request.Context(), c.Writer, common.NewRelayRequest(c, relay.DialectOpenAI, body))
}

// ListModels serves GET /v1/models in the OpenAI list shape.
func (h *Handler) ListModels(c *gin.Context) {
	list := h.disc.Models(c.Request.Context())
	data := make([]gin.H, 0, len(list))
	for _, m := range list {
		data = append(data, gin.H{
			"id":       m.ID,
			"object":   "model",
			"created":  m.Created,
			"owned_by": m.OwnedBy,
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}
