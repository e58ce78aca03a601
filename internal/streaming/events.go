// Package streaming consumes the upstream SSE stream and re-emits it in the
// client's dialect: OpenAI chunks, Anthropic events, or Gemini-shaped SSE.
package streaming

import (
	"github.com/tidwall/gjson"
)

// Kind classifies one upstream part.
type Kind int

const (
	KindText Kind = iota
	KindThinking
	KindToolCall
	KindImage
)

// ToolCall is a functionCall part flattened for re-emission.
type ToolCall struct {
	ID   string
	Name string
	Args string // JSON object text
}

// InlineImage is a generated image payload, still base64.
type InlineImage struct {
	Mime string
	Data string
}

// Event is one classified upstream part.
type Event struct {
	Kind      Kind
	Text      string
	Signature string
	Call      *ToolCall
	Image     *InlineImage
}

// Usage mirrors the upstream usageMetadata counts.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ParseEvent classifies the parts of one upstream SSE payload. The envelope
// may or may not wrap the body in a "response" object.
func ParseEvent(payload []byte) (events []Event, usage *Usage, finishReason string) {
	root := gjson.ParseBytes(payload)
	resp := root.Get("response")
	if !resp.Exists() {
		resp = root
	}

	candidate := resp.Get("candidates.0")
	for _, part := range candidate.Get("content.parts").Array() {
		sig := part.Get("thoughtSignature").String()
		switch {
		case part.Get("functionCall").Exists():
			fc := part.Get("functionCall")
			args := fc.Get("args").Raw
			if args == "" {
				args = "{}"
			}
			events = append(events, Event{
				Kind:      KindToolCall,
				Signature: sig,
				Call: &ToolCall{
					ID:   fc.Get("id").String(),
					Name: fc.Get("name").String(),
					Args: args,
				},
			})
		case part.Get("inlineData").Exists():
			events = append(events, Event{
				Kind: KindImage,
				Image: &InlineImage{
					Mime: part.Get("inlineData.mimeType").String(),
					Data: part.Get("inlineData.data").String(),
				},
			})
		case part.Get("thought").Bool():
			if text := part.Get("text").String(); text != "" {
				events = append(events, Event{Kind: KindThinking, Text: text, Signature: sig})
			}
		default:
			if text := part.Get("text").String(); text != "" {
				events = append(events, Event{Kind: KindText, Text: text, Signature: sig})
			}
		}
	}

	if um := resp.Get("usageMetadata"); um.Exists() {
		usage = &Usage{
			PromptTokens:     int(um.Get("promptTokenCount").Int()),
			CompletionTokens: int(um.Get("candidatesTokenCount").Int()),
			TotalTokens:      int(um.Get("totalTokenCount").Int()),
		}
	}
	return events, usage, candidate.Get("finishReason").String()
}

// EstimateTokens is the 1-token-per-4-characters fallback used when the
// upstream omits usage counts.
func EstimateTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	n := chars / 4
	if n == 0 {
		n = 1
	}
	return n
}
