package translator

import (
	"encoding/json"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"antigravity2api-go/internal/models"
)

const imageSteeringNote = "When the user asks for an image, generate it directly instead of describing it in words."

// openAIContents maps OpenAI chat messages onto upstream contents turns.
func (a *Adapter) openAIContents(body []byte, model string) []interface{} {
	needSignature := models.IsGemini3Class(model)
	var contents []interface{}

	for _, msg := range gjson.GetBytes(body, "messages").Array() {
		switch msg.Get("role").String() {
		case "system", "user":
			if parts := userParts(msg.Get("content")); len(parts) > 0 {
				contents = append(contents, newTurn("user", parts))
			}
		case "assistant":
			contents = a.appendAssistant(contents, msg, model, needSignature)
		case "tool":
			contents = appendToolResponse(contents, msg)
		}
	}
	return contents
}

// userParts extracts text and inline images from a user or system message.
func userParts(content gjson.Result) []interface{} {
	if !content.IsArray() {
		if text := content.String(); text != "" {
			return []interface{}{textPart(text)}
		}
		return nil
	}
	var parts []interface{}
	for _, part := range content.Array() {
		switch part.Get("type").String() {
		case "text":
			if text := part.Get("text").String(); text != "" {
				parts = append(parts, textPart(text))
			}
		case "image_url":
			if p := inlineImagePart(part.Get("image_url.url").String()); p != nil {
				parts = append(parts, p)
			}
		default:
			if text := part.Get("text").String(); text != "" {
				parts = append(parts, textPart(text))
			}
		}
	}
	return parts
}

// inlineImagePart decodes a data URI into an inlineData part. Non-data URLs
// are passed through as fileData.
func inlineImagePart(url string) interface{} {
	if url == "" {
		return nil
	}
	if !strings.HasPrefix(url, "data:") {
		return map[string]interface{}{
			"fileData": map[string]interface{}{"fileUri": url},
		}
	}
	meta, data, ok := strings.Cut(url, ",")
	if !ok {
		return nil
	}
	mime := strings.TrimPrefix(meta, "data:")
	mime = strings.TrimSuffix(mime, ";base64")
	if mime == "" {
		mime = "image/jpeg"
	}
	return map[string]interface{}{
		"inlineData": map[string]interface{}{"mimeType": mime, "data": data},
	}
}

// appendAssistant adds a model turn. Tool calls with no accompanying text are
// merged into a preceding tool-call-only model turn; on gemini-3 models, text
// without a cached thought signature is dropped rather than sent unsigned.
func (a *Adapter) appendAssistant(contents []interface{}, msg gjson.Result, model string, needSignature bool) []interface{} {
	text := assistantText(msg.Get("content"))
	var parts []interface{}

	if text != "" {
		part := textPart(text)
		if needSignature {
			if sig, ok := a.sigs.LookupText(text); ok {
				part["thoughtSignature"] = sig
				parts = append(parts, part)
			} else {
				log.WithField("model", model).Warn("dropping assistant text without thought signature")
			}
		} else {
			parts = append(parts, part)
		}
	}

	var callParts []interface{}
	for _, tc := range msg.Get("tool_calls").Array() {
		if tc.Get("type").String() != "function" {
			continue
		}
		id := tc.Get("id").String()
		call := map[string]interface{}{
			"name": tc.Get("function.name").String(),
		}
		if id != "" {
			call["id"] = id
		}
		var args interface{}
		if err := json.Unmarshal([]byte(tc.Get("function.arguments").String()), &args); err == nil {
			call["args"] = args
		} else {
			call["args"] = map[string]interface{}{}
		}
		part := map[string]interface{}{"functionCall": call}
		if sig, ok := a.sigs.ToolCall(id); ok {
			part["thoughtSignature"] = sig
		}
		callParts = append(callParts, part)
	}

	if text == "" && len(callParts) > 0 {
		if last := lastTurn(contents); last != nil && last["role"] == "model" && onlyFunctionCalls(last) {
			last["parts"] = append(last["parts"].([]interface{}), callParts...)
			return contents
		}
	}
	parts = append(parts, callParts...)
	if len(parts) == 0 {
		return contents
	}
	return append(contents, newTurn("model", parts))
}

// appendToolResponse adds a tool-result message as a functionResponse part,
// merging into a preceding function-response turn when possible.
func appendToolResponse(contents []interface{}, msg gjson.Result) []interface{} {
	id := msg.Get("tool_call_id").String()
	name := msg.Get("name").String()
	if name == "" {
		name = functionNameByCallID(contents, id)
	}

	extracted := toolResultText(msg.Get("content"))
	var response interface{}
	if err := json.Unmarshal([]byte(extracted), &response); err != nil {
		response = map[string]interface{}{"result": extracted}
	} else if _, isObj := response.(map[string]interface{}); !isObj {
		response = map[string]interface{}{"result": extracted}
	}

	fn := map[string]interface{}{"name": name, "response": response}
	if id != "" {
		fn["id"] = id
	}
	part := map[string]interface{}{"functionResponse": fn}

	if last := lastTurn(contents); last != nil && last["role"] == "user" && onlyFunctionResponses(last) {
		last["parts"] = append(last["parts"].([]interface{}), part)
		return contents
	}
	return append(contents, newTurn("user", []interface{}{part}))
}

// toolResultText extracts the payload of a tool message: string as-is,
// object by its text field, array by its first text element, raw JSON as a
// last resort.
func toolResultText(content gjson.Result) string {
	switch {
	case content.IsArray():
		for _, item := range content.Array() {
			if text := item.Get("text"); text.Exists() {
				return text.String()
			}
		}
		return content.Raw
	case content.IsObject():
		if text := content.Get("text"); text.Exists() {
			return text.String()
		}
		return content.Raw
	default:
		return content.String()
	}
}

// functionNameByCallID scans prior model turns for a matching functionCall id.
func functionNameByCallID(contents []interface{}, id string) string {
	if id == "" {
		return ""
	}
	for i := len(contents) - 1; i >= 0; i-- {
		turn, ok := contents[i].(map[string]interface{})
		if !ok || turn["role"] != "model" {
			continue
		}
		for _, p := range turn["parts"].([]interface{}) {
			part, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			call, ok := part["functionCall"].(map[string]interface{})
			if !ok {
				continue
			}
			if call["id"] == id {
				name, _ := call["name"].(string)
				return name
			}
		}
	}
	return ""
}

func assistantText(content gjson.Result) string {
	if !content.IsArray() {
		return content.String()
	}
	var b strings.Builder
	for _, part := range content.Array() {
		if part.Get("type").String() == "text" || part.Get("text").Exists() {
			b.WriteString(part.Get("text").String())
		}
	}
	return b.String()
}

func textPart(text string) map[string]interface{} {
	return map[string]interface{}{"text": text}
}

func newTurn(role string, parts []interface{}) map[string]interface{} {
	return map[string]interface{}{"role": role, "parts": parts}
}

func lastTurn(contents []interface{}) map[string]interface{} {
	if len(contents) == 0 {
		return nil
	}
	turn, _ := contents[len(contents)-1].(map[string]interface{})
	return turn
}

func onlyFunctionCalls(turn map[string]interface{}) bool {
	parts, _ := turn["parts"].([]interface{})
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		part, ok := p.(map[string]interface{})
		if !ok {
			return false
		}
		if _, has := part["functionCall"]; !has {
			return false
		}
	}
	return true
}

func onlyFunctionResponses(turn map[string]interface{}) bool {
	parts, _ := turn["parts"].([]interface{})
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		part, ok := p.(map[string]interface{})
		if !ok {
			return false
		}
		if _, has := part["functionResponse"]; !has {
			return false
		}
	}
	return true
}

// hasFunctionCalls reports whether any model turn carries a functionCall part.
func hasFunctionCalls(contents []interface{}) bool {
	for _, c := range contents {
		turn, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		parts, _ := turn["parts"].([]interface{})
		for _, p := range parts {
			if part, ok := p.(map[string]interface{}); ok {
				if _, has := part["functionCall"]; has {
					return true
				}
			}
		}
	}
	return false
}

// stripThoughtSignatures removes signatures from every part in place; the
// upstream rejects them on Claude-family models.
func stripThoughtSignatures(contents []interface{}) {
	for _, c := range contents {
		turn, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		parts, _ := turn["parts"].([]interface{})
		for _, p := range parts {
			if part, ok := p.(map[string]interface{}); ok {
				delete(part, "thoughtSignature")
			}
		}
	}
}

// geminiHasFunctionCalls reports whether any turn in a raw Gemini request
// carries a functionCall part.
func geminiHasFunctionCalls(request string) bool {
	for _, content := range gjson.Get(request, "contents").Array() {
		for _, part := range content.Get("parts").Array() {
			if part.Get("functionCall").Exists() {
				return true
			}
		}
	}
	return false
}

// stripThoughtSignaturesJSON is the raw-JSON variant used on the Gemini path.
func stripThoughtSignaturesJSON(request string) string {
	var paths []string
	for ci, content := range gjson.Get(request, "contents").Array() {
		for pi, part := range content.Get("parts").Array() {
			if part.Get("thoughtSignature").Exists() {
				paths = append(paths, "contents."+strconv.Itoa(ci)+".parts."+strconv.Itoa(pi)+".thoughtSignature")
			}
		}
	}
	for _, p := range paths {
		request, _ = sjson.Delete(request, p)
	}
	return request
}
