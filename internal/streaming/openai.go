package streaming

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "antigravity2api-go/internal/errors"
)

// OpenAISink emits chat.completion.chunk frames. Reasoning goes out as
// reasoning_content deltas, including reasoning the upstream inlines between
// thinking markers in plain text parts.
type OpenAISink struct {
	w        *Writer
	id       string
	model    string
	created  int64
	splitter thinkSplitter

	toolIndex int
	sawTools  bool
}

func NewOpenAISink(w *Writer, model string) *OpenAISink {
	return &OpenAISink{
		w:       w,
		id:      "chatcmpl-" + uuid.NewString(),
		model:   model,
		created: time.Now().Unix(),
	}
}

func (s *OpenAISink) OnEvent(_ []byte, events []Event, _ *Usage) error {
	for _, ev := range events {
		switch ev.Kind {
		case KindThinking:
			if err := s.writeDelta(map[string]any{"reasoning_content": ev.Text}); err != nil {
				return err
			}
		case KindText:
			content, thinking := s.splitter.feed(ev.Text)
			if thinking != "" {
				if err := s.writeDelta(map[string]any{"reasoning_content": thinking}); err != nil {
					return err
				}
			}
			if content != "" {
				if err := s.writeDelta(map[string]any{"content": content}); err != nil {
					return err
				}
			}
		case KindToolCall:
			id := ev.Call.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			delta := map[string]any{
				"tool_calls": []any{map[string]any{
					"index": s.toolIndex,
					"id":    id,
					"type":  "function",
					"function": map[string]any{
						"name":      ev.Call.Name,
						"arguments": ev.Call.Args,
					},
				}},
			}
			s.toolIndex++
			s.sawTools = true
			if err := s.writeDelta(delta); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *OpenAISink) Finish() error {
	content, thinking := s.splitter.flush()
	if thinking != "" {
		if err := s.writeDelta(map[string]any{"reasoning_content": thinking}); err != nil {
			return err
		}
	}
	if content != "" {
		if err := s.writeDelta(map[string]any{"content": content}); err != nil {
			return err
		}
	}

	finish := "stop"
	if s.sawTools {
		finish = "tool_calls"
	}
	if err := s.writeFinish(finish); err != nil {
		return err
	}
	if err := s.w.WriteDone(); err != nil {
		return err
	}
	s.w.Close()
	return nil
}

func (s *OpenAISink) Fail(apiErr *apperrors.APIError) error {
	if err := s.writeDelta(map[string]any{"content": errorPrefix + apiErr.Message}); err != nil {
		return err
	}
	if err := s.writeFinish("stop"); err != nil {
		return err
	}
	if err := s.w.WriteDone(); err != nil {
		return err
	}
	s.w.Close()
	return nil
}

func (s *OpenAISink) writeDelta(delta map[string]any) error {
	return s.w.WriteData(s.chunk(delta, nil))
}

func (s *OpenAISink) writeFinish(reason string) error {
	return s.w.WriteData(s.chunk(map[string]any{}, &reason))
}

func (s *OpenAISink) chunk(delta map[string]any, finish *string) map[string]any {
	return map[string]any{
		"id":      s.id,
		"object":  "chat.completion.chunk",
		"created": s.created,
		"model":   s.model,
		"choices": []any{map[string]any{
			"index":         0,
			"delta":         delta,
			"finish_reason": finish,
		}},
	}
}

// BuildOpenAIResponse reshapes a buffered upstream body into a chat.completion
// object, with extraText appended to the visible content.
func BuildOpenAIResponse(model string, body []byte, extraText string) ([]byte, error) {
	events, usage, _ := ParseEvent(body)

	var content, reasoning strings.Builder
	var splitter thinkSplitter
	var toolCalls []any
	for _, ev := range events {
		switch ev.Kind {
		case KindThinking:
			reasoning.WriteString(ev.Text)
		case KindText:
			c, th := splitter.feed(ev.Text)
			content.WriteString(c)
			reasoning.WriteString(th)
		case KindToolCall:
			id := ev.Call.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			toolCalls = append(toolCalls, map[string]any{
				"id":   id,
				"type": "function",
				"function": map[string]any{
					"name":      ev.Call.Name,
					"arguments": ev.Call.Args,
				},
			})
		}
	}
	c, th := splitter.flush()
	content.WriteString(c)
	reasoning.WriteString(th)
	content.WriteString(extraText)

	message := map[string]any{"role": "assistant", "content": content.String()}
	if reasoning.Len() > 0 {
		message["reasoning_content"] = reasoning.String()
	}
	finish := "stop"
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
		finish = "tool_calls"
	}

	out := map[string]any{
		"id":      "chatcmpl-" + uuid.NewString(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []any{map[string]any{
			"index":         0,
			"message":       message,
			"finish_reason": finish,
		}},
		"usage": usageObject(usage, content.Len()+reasoning.Len()),
	}
	return json.Marshal(out)
}

func usageObject(usage *Usage, outputChars int) map[string]any {
	if usage == nil {
		completion := EstimateTokens(outputChars)
		return map[string]any{
			"prompt_tokens":     0,
			"completion_tokens": completion,
			"total_tokens":      completion,
		}
	}
	return map[string]any{
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	}
}
