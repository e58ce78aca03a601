// Package translator converts the three client dialects (OpenAI chat
// completions, Anthropic messages, Gemini generateContent) into the single
// upstream envelope, and harvests thought signatures from upstream responses.
// All translation happens over raw JSON with gjson/sjson.
package translator

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"antigravity2api-go/internal/constants"
	"antigravity2api-go/internal/credential"
	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/models"
	"antigravity2api-go/internal/signature"
)

// UpstreamRequest is the adapter's output: the wrapped envelope ready to POST.
type UpstreamRequest struct {
	Model   string
	Stream  bool
	Payload []byte
}

// Options carries the generation defaults applied when the client omits
// sampling parameters.
type Options struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// DefaultOptions returns the built-in generation defaults.
func DefaultOptions() Options {
	return Options{
		Temperature:     constants.DefaultTemperature,
		TopP:            constants.DefaultTopP,
		TopK:            constants.DefaultTopK,
		MaxOutputTokens: constants.DefaultMaxOutputTokens,
	}
}

// Adapter owns the dialect translations and the thought-signature store.
type Adapter struct {
	opts Options
	sigs *signature.Store
}

// New creates an adapter. A nil signature store gets a fresh one.
func New(opts Options, sigs *signature.Store) *Adapter {
	if sigs == nil {
		sigs = signature.NewStore(0)
	}
	return &Adapter{opts: opts, sigs: sigs}
}

// Signatures exposes the signature store for post-stream registration.
func (a *Adapter) Signatures() *signature.Store { return a.sigs }

// FromOpenAIChat translates an OpenAI chat completions body.
func (a *Adapter) FromOpenAIChat(body []byte, view credential.View) (*UpstreamRequest, error) {
	model := gjson.GetBytes(body, "model").String()
	if model == "" {
		return nil, apperrors.BadRequest("model is required")
	}
	if !gjson.GetBytes(body, "messages").IsArray() {
		return nil, apperrors.BadRequest("messages must be an array")
	}

	contents := a.openAIContents(body, model)
	if len(contents) == 0 {
		return nil, apperrors.BadRequest("messages produced no content")
	}
	if models.IsClaudeFamily(model) {
		stripThoughtSignatures(contents)
	}

	request := `{"contents":[]}`
	contentsJSON, _ := json.Marshal(contents)
	request, _ = sjson.SetRaw(request, "contents", string(contentsJSON))

	if decls := buildFunctionDeclarations(gjson.GetBytes(body, "tools")); decls != nil {
		declsJSON, _ := json.Marshal(decls)
		request, _ = sjson.SetRaw(request, "tools", string(declsJSON))
	}

	genConfig := a.generationConfig(body, model, hasFunctionCalls(contents))
	genJSON, _ := json.Marshal(genConfig)
	request, _ = sjson.SetRaw(request, "generationConfig", string(genJSON))

	if models.IsImageModel(model) {
		request = appendSystemText(request, imageSteeringNote)
	}

	return a.wrap(model, gjson.GetBytes(body, "stream").Bool(), request, view)
}

// FromClaudeMessages translates an Anthropic messages body by first mapping
// it onto the OpenAI chat shape and reusing that path.
func (a *Adapter) FromClaudeMessages(body []byte, view credential.View) (*UpstreamRequest, error) {
	openAIBody, err := mapClaudeToOpenAI(body)
	if err != nil {
		return nil, err
	}
	return a.FromOpenAIChat(openAIBody, view)
}

// FromGemini translates a Gemini generateContent body; the model comes from
// the URL, not the payload.
func (a *Adapter) FromGemini(body []byte, model string, stream bool, view credential.View) (*UpstreamRequest, error) {
	if model == "" {
		return nil, apperrors.BadRequest("model is required")
	}
	if !gjson.GetBytes(body, "contents").IsArray() {
		return nil, apperrors.BadRequest("contents must be an array")
	}

	request := string(body)
	request, _ = sjson.Delete(request, "safetySettings")

	// Clean every declared tool schema in place.
	tools := gjson.Get(request, "tools")
	for ti, tool := range tools.Array() {
		for di, decl := range tool.Get("functionDeclarations").Array() {
			if params := decl.Get("parameters"); params.IsObject() {
				cleaned := CleanToolSchema(params.Raw)
				path := "tools." + strconv.Itoa(ti) + ".functionDeclarations." + strconv.Itoa(di) + ".parameters"
				request, _ = sjson.SetRaw(request, path, cleaned)
			}
		}
	}

	if models.IsClaudeFamily(model) {
		request = stripThoughtSignaturesJSON(request)
	}

	genConfig := a.geminiGenerationConfig(gjson.Get(request, "generationConfig"), model,
		geminiHasFunctionCalls(request))
	genJSON, _ := json.Marshal(genConfig)
	request, _ = sjson.SetRaw(request, "generationConfig", string(genJSON))

	if models.IsImageModel(model) {
		request = appendSystemText(request, imageSteeringNote)
	}

	return a.wrap(model, stream, request, view)
}

// wrap builds the upstream envelope around a translated request body.
func (a *Adapter) wrap(model string, stream bool, request string, view credential.View) (*UpstreamRequest, error) {
	out := "{}"
	out, _ = sjson.Set(out, "model", model)
	out, _ = sjson.Set(out, "userAgent", constants.UpstreamClientName)
	out, _ = sjson.Set(out, "requestType", constants.UpstreamReqType)
	out, _ = sjson.Set(out, "project", view.ProjectID)
	out, _ = sjson.Set(out, "requestId", "agent-"+uuid.NewString())
	out, _ = sjson.SetRaw(out, "request", request)
	out, _ = sjson.Set(out, "request.sessionId", view.SessionID)

	return &UpstreamRequest{Model: model, Stream: stream, Payload: []byte(out)}, nil
}

// RegisterResponseSignatures harvests thought signatures from a completed
// upstream event stream: tool calls by id, emitted text by normalized form.
func (a *Adapter) RegisterResponseSignatures(events [][]byte) {
	var text string
	var textSig string

	for _, event := range events {
		parts := gjson.GetBytes(event, "response.candidates.0.content.parts")
		if !parts.Exists() {
			parts = gjson.GetBytes(event, "candidates.0.content.parts")
		}
		for _, part := range parts.Array() {
			sig := part.Get("thoughtSignature").String()
			if call := part.Get("functionCall"); call.Exists() {
				a.sigs.SetToolCall(call.Get("id").String(), sig)
				continue
			}
			if part.Get("thought").Bool() {
				continue
			}
			if t := part.Get("text").String(); t != "" {
				text += t
				if sig != "" {
					textSig = sig
				}
			}
		}
	}
	if text != "" && textSig != "" {
		a.sigs.SetText(text, textSig)
	}
}

