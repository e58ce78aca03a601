package errors

import (
	"encoding/json"
	"net/http"
)

// ToJSON renders the error in the requested client dialect.
func (e *APIError) ToJSON(format ErrorFormat) []byte {
	switch format {
	case FormatClaude:
		return e.toClaudeJSON()
	case FormatGemini:
		return e.toGeminiJSON()
	default:
		return e.toOpenAIJSON()
	}
}

func (e *APIError) toOpenAIJSON() []byte {
	var envelope OpenAIError
	envelope.Error.Message = e.Message
	envelope.Error.Type = e.Type
	envelope.Error.Code = e.Code
	data, _ := json.Marshal(envelope)
	return data
}

func (e *APIError) toClaudeJSON() []byte {
	var envelope ClaudeError
	envelope.Type = "error"
	envelope.Error.Type = e.claudeErrorType()
	envelope.Error.Message = e.Message
	data, _ := json.Marshal(envelope)
	return data
}

func (e *APIError) toGeminiJSON() []byte {
	var envelope GeminiError
	envelope.Error.Code = e.HTTPStatus
	envelope.Error.Message = e.Message
	envelope.Error.Status = e.geminiStatus()
	data, _ := json.Marshal(envelope)
	return data
}

func (e *APIError) claudeErrorType() string {
	switch e.HTTPStatus {
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusForbidden:
		return "permission_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusServiceUnavailable:
		return "overloaded_error"
	default:
		return "api_error"
	}
}

func (e *APIError) geminiStatus() string {
	switch e.HTTPStatus {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "DEADLINE_EXCEEDED"
	default:
		return "INTERNAL"
	}
}
