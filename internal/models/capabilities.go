package models

import "strings"

// thinkingAllowlist names models that support thinking without matching any
// of the name-pattern rules.
var thinkingAllowlist = map[string]struct{}{
	"gemini-2.0-flash-thinking-exp": {},
}

// ThinkingEnabled reports whether the upstream request should carry a
// non-zero thinking budget for this model.
func ThinkingEnabled(model string) bool {
	m := strings.TrimSpace(model)
	if strings.HasSuffix(m, "-thinking") {
		return true
	}
	if m == "gemini-2.5-pro" {
		return true
	}
	if strings.HasPrefix(m, "gemini-3-pro-") {
		return true
	}
	_, ok := thinkingAllowlist[m]
	return ok
}

// IsClaudeFamily reports whether the model routes through the upstream's
// Claude handling, which rejects thoughtSignature parts.
func IsClaudeFamily(model string) bool {
	return strings.Contains(strings.ToLower(model), "claude")
}

// IsImageModel reports whether the model generates images and therefore
// needs responseModalities and image buffering.
func IsImageModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "-image")
}

// IsGemini3Class reports whether assistant text must carry a cached
// thoughtSignature to be accepted upstream.
func IsGemini3Class(model string) bool {
	return strings.Contains(strings.ToLower(model), "gemini-3")
}
