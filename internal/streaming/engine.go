package streaming

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	log "github.com/sirupsen/logrus"

	"antigravity2api-go/internal/imagestore"
	"antigravity2api-go/internal/upstream"
)

// Result is what the stream left behind once drained: the raw payloads for
// signature registration, normalized records for the request log, and the
// terminal usage counts.
type Result struct {
	Raw       [][]byte
	LogEvents []json.RawMessage
	ToolCalls bool
	Usage     *Usage
	ExtraText string // buffered images rendered as markdown
}

// Engine drains an upstream stream into a sink. Generated images are held
// back until the stream ends, then stored and re-emitted as one markdown
// block.
type Engine struct {
	images imagestore.Store
}

func NewEngine(images imagestore.Store) *Engine {
	if images == nil {
		images = imagestore.NewBase64Store()
	}
	return &Engine{images: images}
}

// Consume reads the stream to completion, forwarding each payload to the
// sink. The caller decides how to terminate the sink: Finish on a nil error,
// Fail (or a JSON error body) otherwise.
func (e *Engine) Consume(ctx context.Context, stream *upstream.Stream, sink Sink) (*Result, error) {
	result := &Result{}
	var pending []*InlineImage

	for {
		payload, ok := stream.Next()
		if !ok {
			break
		}
		raw := append([]byte(nil), payload...)
		result.Raw = append(result.Raw, raw)

		events, usage, _ := ParseEvent(raw)
		if usage != nil {
			result.Usage = usage
		}

		pass := events[:0:0]
		for _, ev := range events {
			switch ev.Kind {
			case KindImage:
				pending = append(pending, ev.Image)
			case KindToolCall:
				result.ToolCalls = true
				result.LogEvents = append(result.LogEvents, toolCallRecord(ev.Call))
				pass = append(pass, ev)
			case KindThinking:
				result.LogEvents = append(result.LogEvents, textRecord("thinking", ev.Text))
				pass = append(pass, ev)
			case KindText:
				result.LogEvents = append(result.LogEvents, textRecord("text", ev.Text))
				pass = append(pass, ev)
			}
		}
		if err := sink.OnEvent(raw, pass, usage); err != nil {
			return result, err
		}
	}
	if err := stream.Err(); err != nil {
		return result, err
	}

	if len(pending) > 0 {
		markdown := e.storeImages(ctx, pending)
		if markdown != "" {
			result.ExtraText = markdown
			result.LogEvents = append(result.LogEvents, textRecord("text", markdown))
			if err := sink.OnEvent(nil, []Event{{Kind: KindText, Text: markdown}}, nil); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// storeImages persists each buffered image and renders the batch as markdown,
// one image per line. Store failures drop the image with a log line rather
// than failing the whole response.
func (e *Engine) storeImages(ctx context.Context, images []*InlineImage) string {
	var lines []string
	for _, img := range images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			log.WithError(err).Warn("skipping undecodable image payload")
			continue
		}
		url, err := e.images.Save(ctx, data, img.Mime)
		if err != nil {
			log.WithError(err).Error("store generated image")
			continue
		}
		lines = append(lines, "![image]("+url+")")
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n\n" + strings.Join(lines, "\n")
}

// CollectImages extracts and stores inline images from a buffered non-stream
// body, returning the markdown block to append.
func (e *Engine) CollectImages(ctx context.Context, body []byte) string {
	events, _, _ := ParseEvent(body)
	var pending []*InlineImage
	for _, ev := range events {
		if ev.Kind == KindImage {
			pending = append(pending, ev.Image)
		}
	}
	if len(pending) == 0 {
		return ""
	}
	return e.storeImages(ctx, pending)
}

func textRecord(kind, content string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"type": kind, "content": content})
	return data
}

func toolCallRecord(call *ToolCall) json.RawMessage {
	args := call.Args
	if !json.Valid([]byte(args)) {
		args = "{}"
	}
	data, _ := json.Marshal(map[string]any{
		"type": "tool_calls",
		"tool_calls": []any{map[string]any{
			"id":       call.ID,
			"type":     "function",
			"function": map[string]any{"name": call.Name, "arguments": args},
		}},
	})
	return data
}
