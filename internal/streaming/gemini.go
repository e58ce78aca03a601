package streaming

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	apperrors "antigravity2api-go/internal/errors"
)

// GeminiSink forwards upstream chunks nearly verbatim: the Cloud Code
// envelope is unwrapped and the inner response object goes out as-is.
type GeminiSink struct {
	w *Writer
}

func NewGeminiSink(w *Writer) *GeminiSink { return &GeminiSink{w: w} }

func (s *GeminiSink) OnEvent(raw []byte, _ []Event, _ *Usage) error {
	if len(raw) == 0 {
		return nil
	}
	return s.w.WriteRawData(unwrapResponse(raw))
}

func (s *GeminiSink) Finish() error {
	s.w.Close()
	return nil
}

func (s *GeminiSink) Fail(apiErr *apperrors.APIError) error {
	chunk := map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": errorPrefix + apiErr.Message}},
			},
			"finishReason": "STOP",
			"index":        0,
		}},
	}
	if err := s.w.WriteData(chunk); err != nil {
		return err
	}
	s.w.Close()
	return nil
}

// BuildGeminiResponse unwraps a buffered upstream body. When extraText is
// set, it is appended as a trailing text part of the first candidate.
func BuildGeminiResponse(body []byte, extraText string) ([]byte, error) {
	out := unwrapResponse(body)
	if extraText == "" {
		return out, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		return out, nil
	}
	candidates, _ := doc["candidates"].([]any)
	if len(candidates) == 0 {
		return out, nil
	}
	candidate, _ := candidates[0].(map[string]any)
	content, _ := candidate["content"].(map[string]any)
	if content == nil {
		content = map[string]any{"role": "model"}
		candidate["content"] = content
	}
	parts, _ := content["parts"].([]any)
	content["parts"] = append(parts, map[string]any{"text": extraText})
	return json.Marshal(doc)
}

func unwrapResponse(raw []byte) []byte {
	if resp := gjson.GetBytes(raw, "response"); resp.Exists() && resp.IsObject() {
		return []byte(resp.Raw)
	}
	return raw
}
