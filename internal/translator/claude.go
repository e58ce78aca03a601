package translator

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	apperrors "antigravity2api-go/internal/errors"
)

// mapClaudeToOpenAI rewrites an Anthropic messages body into the OpenAI chat
// shape so both dialects share one upstream translation path.
func mapClaudeToOpenAI(body []byte) ([]byte, error) {
	model := gjson.GetBytes(body, "model").String()
	if model == "" {
		return nil, apperrors.BadRequest("model is required")
	}
	if !gjson.GetBytes(body, "messages").IsArray() {
		return nil, apperrors.BadRequest("messages must be an array")
	}

	out := "{}"
	out, _ = sjson.Set(out, "model", model)
	if gjson.GetBytes(body, "stream").Bool() {
		out, _ = sjson.Set(out, "stream", true)
	}
	for from, to := range map[string]string{
		"temperature": "temperature",
		"top_p":       "top_p",
		"top_k":       "top_k",
		"max_tokens":  "max_tokens",
	} {
		if v := gjson.GetBytes(body, from); v.Exists() {
			out, _ = sjson.Set(out, to, v.Value())
		}
	}
	if stops := gjson.GetBytes(body, "stop_sequences"); stops.IsArray() {
		out, _ = sjson.SetRaw(out, "stop", stops.Raw)
	}

	var messages []interface{}
	if system := claudeSystemText(gjson.GetBytes(body, "system")); system != "" {
		messages = append(messages, map[string]interface{}{"role": "system", "content": system})
	}
	for _, msg := range gjson.GetBytes(body, "messages").Array() {
		messages = append(messages, claudeMessage(msg)...)
	}
	messagesJSON, _ := json.Marshal(messages)
	out, _ = sjson.SetRaw(out, "messages", string(messagesJSON))

	var tools []interface{}
	for _, tool := range gjson.GetBytes(body, "tools").Array() {
		name := tool.Get("name").String()
		if name == "" {
			continue
		}
		fn := map[string]interface{}{"name": name}
		if desc := tool.Get("description").String(); desc != "" {
			fn["description"] = desc
		}
		if schema := tool.Get("input_schema"); schema.IsObject() {
			fn["parameters"] = schema.Value()
		}
		tools = append(tools, map[string]interface{}{"type": "function", "function": fn})
	}
	if len(tools) > 0 {
		toolsJSON, _ := json.Marshal(tools)
		out, _ = sjson.SetRaw(out, "tools", string(toolsJSON))
	}

	return []byte(out), nil
}

// claudeSystemText accepts both the string and block-array system shapes.
func claudeSystemText(system gjson.Result) string {
	if !system.IsArray() {
		return system.String()
	}
	var text string
	for _, block := range system.Array() {
		if block.Get("type").String() == "text" {
			if text != "" {
				text += "\n"
			}
			text += block.Get("text").String()
		}
	}
	return text
}

// claudeMessage expands one Anthropic message into its OpenAI equivalents.
// A user message holding tool_result blocks becomes tool messages; an
// assistant message holding tool_use blocks gets tool_calls.
func claudeMessage(msg gjson.Result) []interface{} {
	role := msg.Get("role").String()
	content := msg.Get("content")

	if !content.IsArray() {
		if text := content.String(); text != "" {
			return []interface{}{map[string]interface{}{"role": role, "content": text}}
		}
		return nil
	}

	var result []interface{}
	var userContent []interface{}
	var assistantText string
	var toolCalls []interface{}

	for _, block := range content.Array() {
		switch block.Get("type").String() {
		case "text":
			if role == "assistant" {
				assistantText += block.Get("text").String()
			} else {
				userContent = append(userContent, map[string]interface{}{
					"type": "text",
					"text": block.Get("text").String(),
				})
			}
		case "image":
			src := block.Get("source")
			if src.Get("type").String() == "base64" {
				url := "data:" + src.Get("media_type").String() + ";base64," + src.Get("data").String()
				userContent = append(userContent, map[string]interface{}{
					"type":      "image_url",
					"image_url": map[string]interface{}{"url": url},
				})
			}
		case "tool_use":
			args, _ := json.Marshal(block.Get("input").Value())
			toolCalls = append(toolCalls, map[string]interface{}{
				"id":   block.Get("id").String(),
				"type": "function",
				"function": map[string]interface{}{
					"name":      block.Get("name").String(),
					"arguments": string(args),
				},
			})
		case "tool_result":
			result = append(result, map[string]interface{}{
				"role":         "tool",
				"tool_call_id": block.Get("tool_use_id").String(),
				"content":      claudeToolResultContent(block.Get("content")),
			})
		}
	}

	switch role {
	case "assistant":
		m := map[string]interface{}{"role": "assistant"}
		if assistantText != "" {
			m["content"] = assistantText
		}
		if len(toolCalls) > 0 {
			m["tool_calls"] = toolCalls
		}
		if len(m) > 1 {
			result = append(result, m)
		}
	default:
		if len(userContent) > 0 {
			result = append(result, map[string]interface{}{"role": "user", "content": userContent})
		}
	}
	return result
}

// claudeToolResultContent flattens a tool_result payload to a string.
func claudeToolResultContent(content gjson.Result) string {
	if content.IsArray() {
		var text string
		for _, block := range content.Array() {
			if block.Get("type").String() == "text" {
				text += block.Get("text").String()
			}
		}
		if text != "" {
			return text
		}
		return content.Raw
	}
	return content.String()
}
