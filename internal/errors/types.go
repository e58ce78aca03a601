package errors

import "time"

// ErrorFormat selects the client-facing error envelope.
type ErrorFormat string

const (
	FormatOpenAI ErrorFormat = "openai"
	FormatClaude ErrorFormat = "claude"
	FormatGemini ErrorFormat = "gemini"
)

// Kind classifies an error for the orchestrator's retry/disable policy.
type Kind int

const (
	KindBadRequest Kind = iota
	KindAuthMissing
	KindAuthInvalid
	KindNoCredentialAvailable
	KindCredentialNotFound
	KindAuthExchangeFailed
	KindProjectIDMissing
	KindUpstreamTransient
	KindUpstreamTerminal
	KindUpstreamOther
	KindStorageCorrupt
)

// APIError is the standardized error carried across the gateway.
// HTTPStatus is what the client sees; Kind is what the orchestrator acts on.
type APIError struct {
	HTTPStatus int
	Kind       Kind
	Code       string
	Type       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return e.Message
}

// New constructs an APIError with an explicit kind.
func New(kind Kind, httpStatus int, code, errType, message string) *APIError {
	return &APIError{
		HTTPStatus: httpStatus,
		Kind:       kind,
		Code:       code,
		Type:       errType,
		Message:    message,
	}
}

// OpenAIError mirrors OpenAI's error envelope.
type OpenAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
		Param   string `json:"param,omitempty"`
	} `json:"error"`
}

// ClaudeError mirrors Anthropic's error envelope.
type ClaudeError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// GeminiError mirrors the Google API error structure.
type GeminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
