package translator

import (
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"antigravity2api-go/internal/constants"
	"antigravity2api-go/internal/models"
)

// generationConfig derives upstream generation settings from an OpenAI body,
// filling gaps with the configured defaults.
func (a *Adapter) generationConfig(body []byte, model string, hasToolHistory bool) map[string]interface{} {
	gc := map[string]interface{}{
		"candidateCount": 1,
		"temperature":    a.opts.Temperature,
		"topP":           a.opts.TopP,
		"topK":           a.opts.TopK,
	}
	if temp := gjson.GetBytes(body, "temperature"); temp.Exists() {
		gc["temperature"] = temp.Float()
	}
	if topP := gjson.GetBytes(body, "top_p"); topP.Exists() {
		gc["topP"] = topP.Float()
	}
	if topK := gjson.GetBytes(body, "top_k"); topK.Exists() && topK.Int() > 0 {
		gc["topK"] = int(topK.Int())
	}

	maxTokens := a.opts.MaxOutputTokens
	if mt := gjson.GetBytes(body, "max_tokens"); mt.Exists() && mt.Int() > 0 {
		maxTokens = int(mt.Int())
	}
	if mct := gjson.GetBytes(body, "max_completion_tokens"); mct.Exists() && mct.Int() > 0 {
		maxTokens = int(mct.Int())
	}
	if maxTokens > a.opts.MaxOutputTokens {
		maxTokens = a.opts.MaxOutputTokens
	}
	gc["maxOutputTokens"] = maxTokens

	gc["stopSequences"] = constants.StopSequences
	gc["thinkingConfig"] = thinkingConfig(model, hasToolHistory)
	if models.IsImageModel(model) {
		gc["responseModalities"] = []string{"TEXT", "IMAGE"}
	}
	return gc
}

// geminiGenerationConfig overlays defaults onto a client-supplied Gemini
// generationConfig, keeping whatever the client set.
func (a *Adapter) geminiGenerationConfig(existing gjson.Result, model string, hasToolHistory bool) map[string]interface{} {
	gc := map[string]interface{}{}
	if existing.IsObject() {
		for key, value := range existing.Map() {
			gc[key] = value.Value()
		}
	}
	if _, ok := gc["temperature"]; !ok {
		gc["temperature"] = a.opts.Temperature
	}
	if _, ok := gc["topP"]; !ok {
		gc["topP"] = a.opts.TopP
	}
	if _, ok := gc["topK"]; !ok {
		gc["topK"] = a.opts.TopK
	}
	if _, ok := gc["maxOutputTokens"]; !ok {
		gc["maxOutputTokens"] = a.opts.MaxOutputTokens
	}
	gc["stopSequences"] = constants.StopSequences
	if _, ok := gc["thinkingConfig"]; !ok {
		gc["thinkingConfig"] = thinkingConfig(model, hasToolHistory)
	}
	if models.IsImageModel(model) {
		gc["responseModalities"] = []string{"TEXT", "IMAGE"}
	}
	return gc
}

// thinkingConfig enables thought output for the thinking-capable models. A
// Claude-family model replaying tool-call history gets thinking disabled;
// the upstream rejects the combination.
func thinkingConfig(model string, hasToolHistory bool) map[string]interface{} {
	enabled := models.ThinkingEnabled(model)
	if models.IsClaudeFamily(model) && hasToolHistory {
		enabled = false
	}
	if !enabled {
		return map[string]interface{}{"thinkingBudget": constants.ThinkingBudgetOff}
	}
	return map[string]interface{}{
		"thinkingBudget":  constants.ThinkingBudgetOn,
		"includeThoughts": true,
	}
}

// appendSystemText adds a line to the request's system instruction, creating
// the block when absent.
func appendSystemText(request, text string) string {
	parts := gjson.Get(request, "systemInstruction.parts")
	n := len(parts.Array())
	out, _ := sjson.Set(request, "systemInstruction.parts."+strconv.Itoa(n)+".text", text)
	return out
}
