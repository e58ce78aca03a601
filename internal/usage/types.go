// Package usage keeps the bounded, retained request log and derives the
// per-project sliding-window counters the credential pool selects by.
package usage

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Entry is one terminated request.
type Entry struct {
	ID         int64   `json:"id"`
	Timestamp  int64   `json:"timestamp"` // ms epoch
	Model      string  `json:"model,omitempty"`
	ProjectID  string  `json:"project_id,omitempty"`
	Success    bool    `json:"success"`
	StatusCode int     `json:"status_code"`
	Message    string  `json:"message,omitempty"`
	DurationMS int64   `json:"duration_ms"`
	Method     string  `json:"method,omitempty"`
	Path       string  `json:"path,omitempty"`
	Detail     *Detail `json:"detail,omitempty"`
}

// Detail carries the sanitized request snapshot and the response capture.
type Detail struct {
	Request  *RequestSnapshot  `json:"request,omitempty"`
	Response *ResponseSnapshot `json:"response,omitempty"`
}

// RequestSnapshot is the inbound request as stored: headers already redacted.
type RequestSnapshot struct {
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// ResponseSnapshot holds either the full body (non-stream) or the emitted
// event list plus a derived summary (stream).
type ResponseSnapshot struct {
	Body    json.RawMessage   `json:"body,omitempty"`
	Events  []json.RawMessage `json:"events,omitempty"`
	Summary *StreamSummary    `json:"summary,omitempty"`
}

// StreamSummary condenses a stream: concatenated text and thinking, plus the
// last tool_calls event seen.
type StreamSummary struct {
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking,omitempty"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
}

// ProjectUsage is one row of the usage summary.
type ProjectUsage struct {
	Total      int      `json:"total"`
	Success    int      `json:"success"`
	Failed     int      `json:"failed"`
	LastUsedAt int64    `json:"last_used_at"`
	Models     []string `json:"models"`
}

var redactedHeaders = map[string]bool{"authorization": true, "cookie": true}

// SanitizeHeaders flattens headers for storage, redacting credentials.
func SanitizeHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		if redactedHeaders[key] {
			out[key] = "[REDACTED]"
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

// SummarizeStream derives the stream summary from the collected event list.
// Events are the normalized records the streaming engine logs: objects with
// a type plus content or tool_calls fields.
func SummarizeStream(events []json.RawMessage) *StreamSummary {
	if len(events) == 0 {
		return nil
	}
	summary := &StreamSummary{}
	for _, ev := range events {
		parsed := gjson.ParseBytes(ev)
		switch parsed.Get("type").String() {
		case "thinking":
			summary.Thinking += parsed.Get("content").String()
		case "text":
			summary.Text += parsed.Get("content").String()
		}
		if tc := parsed.Get("tool_calls"); tc.Exists() {
			summary.ToolCalls = json.RawMessage(tc.Raw)
		}
	}
	return summary
}
