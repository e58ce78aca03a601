// Package claude serves the Anthropic-compatible surface: messages and the
// local token estimator.
package claude

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tiktoken-go/tokenizer"

	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/handlers/common"
	"antigravity2api-go/internal/relay"
)

// Handler aggregates the dependencies of the Anthropic surface.
type Handler struct {
	orch *relay.Orchestrator

	codecOnce sync.Once
	codec     tokenizer.Codec
}

func New(orch *relay.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// Messages serves POST /v1/messages.
func (h *Handler) Messages(c *gin.Context) {
	body, err := common.ReadBody(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	h.orch.Handle(c.Request.Context(), c.Writer, common.NewRelayRequest(c, relay.DialectClaude, body))
}

// CountTokens serves POST /v1/messages/count_tokens. The count is local: the
// cl100k tokenizer over the concatenated message text, with a chars/4
// fallback when the tokenizer is unavailable.
func (h *Handler) CountTokens(c *gin.Context) {
	body, err := common.ReadBody(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	if !gjson.GetBytes(body, "messages").IsArray() {
		common.RespondError(c, apperrors.BadRequest("messages must be an array"))
		return
	}

	text := collectText(body)
	c.JSON(http.StatusOK, gin.H{"input_tokens": h.countTokens(text)})
}

func (h *Handler) countTokens(text string) int {
	h.codecOnce.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.WithError(err).Warn("cl100k tokenizer unavailable, estimating")
			return
		}
		h.codec = codec
	})
	if h.codec != nil {
		if ids, _, err := h.codec.Encode(text); err == nil {
			return len(ids)
		}
	}
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

// collectText flattens system and message text blocks into one string.
func collectText(body []byte) string {
	var parts []string
	system := gjson.GetBytes(body, "system")
	if system.Type == gjson.String {
		parts = append(parts, system.String())
	} else if system.IsArray() {
		for _, block := range system.Array() {
			if t := block.Get("text").String(); t != "" {
				parts = append(parts, t)
			}
		}
	}
	for _, msg := range gjson.GetBytes(body, "messages").Array() {
		content := msg.Get("content")
		if content.Type == gjson.String {
			parts = append(parts, content.String())
			continue
		}
		for _, block := range content.Array() {
			if t := block.Get("text").String(); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n")
}
