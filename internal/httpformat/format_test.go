package httpformat

import (
	"testing"

	apperrors "antigravity2api-go/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestDetectFromPath(t *testing.T) {
	cases := []struct {
		path string
		want apperrors.ErrorFormat
	}{
		{"/v1/chat/completions", apperrors.FormatOpenAI},
		{"/proj-123/v1/chat/completions", apperrors.FormatOpenAI},
		{"/v1/messages", apperrors.FormatClaude},
		{"/v1/messages/count_tokens", apperrors.FormatClaude},
		{"/v1beta/models/gemini-2.5-flash:generateContent", apperrors.FormatGemini},
		{"/v1beta/models/gemini-2.5-flash:streamGenerateContent", apperrors.FormatGemini},
		{"/v1/models", apperrors.FormatOpenAI},
		{"", apperrors.FormatOpenAI},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectFromPath(tc.path), "path %q", tc.path)
	}
}
