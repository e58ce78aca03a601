package streaming

import (
	"encoding/json"

	"github.com/google/uuid"

	apperrors "antigravity2api-go/internal/errors"
)

type claudeBlock int

const (
	blockNone claudeBlock = iota
	blockThinking
	blockText
)

// ClaudeSink emits the Anthropic event grammar: message_start, one
// content_block per contiguous run of thinking, text, or tool use, then
// message_delta and message_stop.
type ClaudeSink struct {
	w     *Writer
	id    string
	model string

	started    bool
	block      claudeBlock
	blockIndex int

	inputTokens int
	outputChars int
	usage       *Usage
	sawToolUse  bool
}

// NewClaudeSink creates a sink; inputChars sizes the input_tokens estimate
// reported in message_start when the upstream never sends usage.
func NewClaudeSink(w *Writer, model string, inputChars int) *ClaudeSink {
	return &ClaudeSink{
		w:           w,
		id:          "msg_" + uuid.NewString(),
		model:       model,
		blockIndex:  -1,
		inputTokens: EstimateTokens(inputChars),
	}
}

func (s *ClaudeSink) OnEvent(_ []byte, events []Event, usage *Usage) error {
	if usage != nil {
		s.usage = usage
	}
	for _, ev := range events {
		switch ev.Kind {
		case KindThinking:
			if err := s.ensureBlock(blockThinking, map[string]any{"type": "thinking", "thinking": ""}); err != nil {
				return err
			}
			if err := s.delta(map[string]any{"type": "thinking_delta", "thinking": ev.Text}); err != nil {
				return err
			}
			if ev.Signature != "" {
				if err := s.delta(map[string]any{"type": "signature_delta", "signature": ev.Signature}); err != nil {
					return err
				}
			}
			s.outputChars += len(ev.Text)
		case KindText:
			if err := s.ensureBlock(blockText, map[string]any{"type": "text", "text": ""}); err != nil {
				return err
			}
			if err := s.delta(map[string]any{"type": "text_delta", "text": ev.Text}); err != nil {
				return err
			}
			s.outputChars += len(ev.Text)
		case KindToolCall:
			if err := s.emitToolUse(ev.Call); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *ClaudeSink) Finish() error {
	if err := s.start(); err != nil {
		return err
	}
	if err := s.closeBlock(); err != nil {
		return err
	}

	stop := "end_turn"
	if s.sawToolUse {
		stop = "tool_use"
	}
	if err := s.messageDelta(stop); err != nil {
		return err
	}
	if err := s.w.WriteEvent("message_stop", map[string]any{"type": "message_stop"}); err != nil {
		return err
	}
	s.w.Close()
	return nil
}

func (s *ClaudeSink) Fail(apiErr *apperrors.APIError) error {
	if err := s.ensureBlock(blockText, map[string]any{"type": "text", "text": ""}); err != nil {
		return err
	}
	if err := s.delta(map[string]any{"type": "text_delta", "text": errorPrefix + apiErr.Message}); err != nil {
		return err
	}
	if err := s.closeBlock(); err != nil {
		return err
	}
	if err := s.messageDelta("end_turn"); err != nil {
		return err
	}
	if err := s.w.WriteEvent("message_stop", map[string]any{"type": "message_stop"}); err != nil {
		return err
	}
	s.w.Close()
	return nil
}

func (s *ClaudeSink) start() error {
	if s.started {
		return nil
	}
	s.started = true
	return s.w.WriteEvent("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":            s.id,
			"type":          "message",
			"role":          "assistant",
			"model":         s.model,
			"content":       []any{},
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": s.inputTokens, "output_tokens": 0},
		},
	})
}

func (s *ClaudeSink) ensureBlock(t claudeBlock, start map[string]any) error {
	if err := s.start(); err != nil {
		return err
	}
	if s.block == t {
		return nil
	}
	if err := s.closeBlock(); err != nil {
		return err
	}
	s.block = t
	s.blockIndex++
	return s.w.WriteEvent("content_block_start", map[string]any{
		"type":          "content_block_start",
		"index":         s.blockIndex,
		"content_block": start,
	})
}

func (s *ClaudeSink) closeBlock() error {
	if s.block == blockNone {
		return nil
	}
	s.block = blockNone
	return s.w.WriteEvent("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": s.blockIndex,
	})
}

// emitToolUse writes a complete tool_use block: start, one input_json_delta
// with the full arguments, stop.
func (s *ClaudeSink) emitToolUse(call *ToolCall) error {
	if err := s.start(); err != nil {
		return err
	}
	if err := s.closeBlock(); err != nil {
		return err
	}
	id := call.ID
	if id == "" {
		id = "toolu_" + uuid.NewString()
	}
	s.blockIndex++
	s.sawToolUse = true
	if err := s.w.WriteEvent("content_block_start", map[string]any{
		"type":  "content_block_start",
		"index": s.blockIndex,
		"content_block": map[string]any{
			"type":  "tool_use",
			"id":    id,
			"name":  call.Name,
			"input": map[string]any{},
		},
	}); err != nil {
		return err
	}
	if err := s.w.WriteEvent("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": s.blockIndex,
		"delta": map[string]any{"type": "input_json_delta", "partial_json": call.Args},
	}); err != nil {
		return err
	}
	return s.w.WriteEvent("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": s.blockIndex,
	})
}

func (s *ClaudeSink) delta(delta map[string]any) error {
	return s.w.WriteEvent("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": s.blockIndex,
		"delta": delta,
	})
}

func (s *ClaudeSink) messageDelta(stopReason string) error {
	outputTokens := EstimateTokens(s.outputChars)
	if s.usage != nil {
		outputTokens = s.usage.CompletionTokens
	}
	return s.w.WriteEvent("message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": stopReason, "stop_sequence": nil},
		"usage": map[string]any{"output_tokens": outputTokens},
	})
}

// BuildClaudeResponse reshapes a buffered upstream body into an Anthropic
// message object, with extraText appended as a trailing text block.
func BuildClaudeResponse(model string, body []byte, extraText string) ([]byte, error) {
	events, usage, _ := ParseEvent(body)

	var content []any
	outputChars := 0
	sawToolUse := false
	appendText := func(text string) {
		if n := len(content); n > 0 {
			if block, ok := content[n-1].(map[string]any); ok && block["type"] == "text" {
				block["text"] = block["text"].(string) + text
				return
			}
		}
		content = append(content, map[string]any{"type": "text", "text": text})
	}

	for _, ev := range events {
		switch ev.Kind {
		case KindThinking:
			block := map[string]any{"type": "thinking", "thinking": ev.Text}
			if ev.Signature != "" {
				block["signature"] = ev.Signature
			}
			content = append(content, block)
			outputChars += len(ev.Text)
		case KindText:
			appendText(ev.Text)
			outputChars += len(ev.Text)
		case KindToolCall:
			id := ev.Call.ID
			if id == "" {
				id = "toolu_" + uuid.NewString()
			}
			var input any = map[string]any{}
			if err := json.Unmarshal([]byte(ev.Call.Args), &input); err != nil {
				input = map[string]any{}
			}
			content = append(content, map[string]any{
				"type":  "tool_use",
				"id":    id,
				"name":  ev.Call.Name,
				"input": input,
			})
			sawToolUse = true
		}
	}
	if extraText != "" {
		appendText(extraText)
	}

	stop := "end_turn"
	if sawToolUse {
		stop = "tool_use"
	}
	inputTokens, outputTokens := 0, EstimateTokens(outputChars)
	if usage != nil {
		inputTokens, outputTokens = usage.PromptTokens, usage.CompletionTokens
	}
	return json.Marshal(map[string]any{
		"id":            "msg_" + uuid.NewString(),
		"type":          "message",
		"role":          "assistant",
		"model":         model,
		"content":       content,
		"stop_reason":   stop,
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": inputTokens, "output_tokens": outputTokens},
	})
}
