package streaming

import apperrors "antigravity2api-go/internal/errors"

// Sink re-emits classified upstream events in one client dialect.
//
// OnEvent receives the raw upstream payload alongside its classified parts;
// the Gemini sink forwards the raw body, the others consume the parts. Finish
// terminates the stream normally. Fail terminates it after content has been
// written, surfacing the error inside the stream.
type Sink interface {
	OnEvent(raw []byte, events []Event, usage *Usage) error
	Finish() error
	Fail(apiErr *apperrors.APIError) error
}

// errorPrefix leads the in-stream rendering of a mid-stream failure.
const errorPrefix = "错误: "
