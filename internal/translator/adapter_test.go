package translator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"antigravity2api-go/internal/credential"
	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/signature"
)

const testSig = "dGVzdC1zaWduYXR1cmUtbG9uZy1lbm91Z2g="

func testView() credential.View {
	return credential.View{AccessToken: "at", ProjectID: "proj-1", SessionID: "-12345"}
}

func newTestAdapter() *Adapter {
	return New(DefaultOptions(), signature.NewStore(0))
}

func TestFromOpenAIChatEnvelope(t *testing.T) {
	body := []byte(`{"model":"gemini-2.5-flash","stream":true,"messages":[{"role":"system","content":"be brief"},{"role":"user","content":"ping"}]}`)
	req, err := newTestAdapter().FromOpenAIChat(body, testView())
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", req.Model)
	assert.True(t, req.Stream)

	payload := string(req.Payload)
	assert.Equal(t, "gemini-2.5-flash", gjson.Get(payload, "model").String())
	assert.Equal(t, "antigravity", gjson.Get(payload, "userAgent").String())
	assert.Equal(t, "agent", gjson.Get(payload, "requestType").String())
	assert.Equal(t, "proj-1", gjson.Get(payload, "project").String())
	assert.True(t, strings.HasPrefix(gjson.Get(payload, "requestId").String(), "agent-"))
	assert.Equal(t, "-12345", gjson.Get(payload, "request.sessionId").String())

	contents := gjson.Get(payload, "request.contents").Array()
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Get("role").String())
	assert.Equal(t, "be brief", contents[0].Get("parts.0.text").String())
	assert.Equal(t, "ping", contents[1].Get("parts.0.text").String())

	gc := gjson.Get(payload, "request.generationConfig")
	assert.Equal(t, 1.0, gc.Get("temperature").Float())
	assert.Equal(t, 0.95, gc.Get("topP").Float())
	assert.Equal(t, int64(64), gc.Get("topK").Int())
	assert.Equal(t, int64(65535), gc.Get("maxOutputTokens").Int())
	assert.Equal(t, int64(0), gc.Get("thinkingConfig.thinkingBudget").Int())
	assert.Contains(t, gc.Get("stopSequences").Raw, "<|endoftext|>")
}

func TestFromOpenAIChatRejectsMissingModel(t *testing.T) {
	_, err := newTestAdapter().FromOpenAIChat([]byte(`{"messages":[]}`), testView())
	assert.True(t, apperrors.IsKind(err, apperrors.KindBadRequest))
}

func TestFromOpenAIChatImageParts(t *testing.T) {
	body := []byte(`{"model":"gemini-2.5-flash","messages":[{"role":"user","content":[{"type":"text","text":"what is this"},{"type":"image_url","image_url":{"url":"data:image/png;base64,QUJD"}}]}]}`)
	req, err := newTestAdapter().FromOpenAIChat(body, testView())
	require.NoError(t, err)

	parts := gjson.GetBytes(req.Payload, "request.contents.0.parts").Array()
	require.Len(t, parts, 2)
	assert.Equal(t, "what is this", parts[0].Get("text").String())
	assert.Equal(t, "image/png", parts[1].Get("inlineData.mimeType").String())
	assert.Equal(t, "QUJD", parts[1].Get("inlineData.data").String())
}

func TestFromOpenAIChatToolCallMergeAndResponse(t *testing.T) {
	body := []byte(`{"model":"gemini-2.5-flash","messages":[
		{"role":"user","content":"weather in two places"},
		{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Oslo\"}"}}]},
		{"role":"assistant","tool_calls":[{"id":"call_2","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Rome\"}"}}]},
		{"role":"tool","tool_call_id":"call_1","content":"{\"temp\":3}"},
		{"role":"tool","tool_call_id":"call_2","content":"sunny"}
	]}`)
	req, err := newTestAdapter().FromOpenAIChat(body, testView())
	require.NoError(t, err)

	contents := gjson.GetBytes(req.Payload, "request.contents").Array()
	// user, merged model tool-call turn, merged tool-response turn
	require.Len(t, contents, 3)

	model := contents[1]
	assert.Equal(t, "model", model.Get("role").String())
	require.Len(t, model.Get("parts").Array(), 2)
	assert.Equal(t, "get_weather", model.Get("parts.0.functionCall.name").String())
	assert.Equal(t, "Oslo", model.Get("parts.0.functionCall.args.city").String())
	assert.Equal(t, "call_2", model.Get("parts.1.functionCall.id").String())

	responses := contents[2]
	assert.Equal(t, "user", responses.Get("role").String())
	require.Len(t, responses.Get("parts").Array(), 2)
	// Name recovered by scanning the prior model turn for the call id.
	assert.Equal(t, "get_weather", responses.Get("parts.0.functionResponse.name").String())
	assert.Equal(t, int64(3), responses.Get("parts.0.functionResponse.response.temp").Int())
	assert.Equal(t, "sunny", responses.Get("parts.1.functionResponse.response.result").String())
}

func TestFromOpenAIChatToolSchemaCleaned(t *testing.T) {
	body := []byte(`{"model":"gemini-2.5-flash","messages":[{"role":"user","content":"hi"}],
		"tools":[{"type":"function","function":{"name":"f","parameters":{"type":"object","properties":{"x":{"type":"string","minLength":3,"pattern":"^a"}},"additionalProperties":false,"required":["x"]}}}]}`)
	req, err := newTestAdapter().FromOpenAIChat(body, testView())
	require.NoError(t, err)

	params := gjson.GetBytes(req.Payload, "request.tools.0.functionDeclarations.0.parameters")
	assert.False(t, params.Get("additionalProperties").Exists())
	assert.False(t, params.Get("properties.x.minLength").Exists())
	assert.Equal(t, `["x"]`, params.Get("required").Raw)
	desc := params.Get("description").String()
	assert.Contains(t, desc, "minLength: 3")
	assert.Contains(t, desc, "pattern: ^a")
	assert.Contains(t, desc, "no additional properties")
}

func TestGemini3UnsignedTextDropped(t *testing.T) {
	a := newTestAdapter()
	body := []byte(`{"model":"gemini-3-pro-high","messages":[
		{"role":"user","content":"hi"},
		{"role":"assistant","content":"unsigned reply"},
		{"role":"user","content":"and then?"}
	]}`)
	req, err := a.FromOpenAIChat(body, testView())
	require.NoError(t, err)

	contents := gjson.GetBytes(req.Payload, "request.contents").Array()
	// The unsigned assistant turn vanished entirely.
	require.Len(t, contents, 2)
	assert.Equal(t, "hi", contents[0].Get("parts.0.text").String())
	assert.Equal(t, "and then?", contents[1].Get("parts.0.text").String())
}

func TestGemini3SignedTextCarriesSignature(t *testing.T) {
	a := newTestAdapter()
	a.Signatures().SetText("signed reply", testSig)

	body := []byte(`{"model":"gemini-3-pro-high","messages":[
		{"role":"user","content":"hi"},
		{"role":"assistant","content":"signed reply"},
		{"role":"user","content":"go on"}
	]}`)
	req, err := a.FromOpenAIChat(body, testView())
	require.NoError(t, err)

	contents := gjson.GetBytes(req.Payload, "request.contents").Array()
	require.Len(t, contents, 3)
	assert.Equal(t, "signed reply", contents[1].Get("parts.0.text").String())
	assert.Equal(t, testSig, contents[1].Get("parts.0.thoughtSignature").String())
}

func TestClaudeFamilyStripsSignaturesAndDisablesThinking(t *testing.T) {
	a := newTestAdapter()
	a.Signatures().SetToolCall("call_1", testSig)

	body := []byte(`{"model":"claude-sonnet-4-5-thinking","messages":[
		{"role":"user","content":"hi"},
		{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"f","arguments":"{}"}}]},
		{"role":"tool","tool_call_id":"call_1","content":"ok"}
	]}`)
	req, err := a.FromOpenAIChat(body, testView())
	require.NoError(t, err)

	payload := string(req.Payload)
	assert.NotContains(t, payload, "thoughtSignature")
	// Thinking model, but tool history forces the budget to zero.
	assert.Equal(t, int64(0), gjson.Get(payload, "request.generationConfig.thinkingConfig.thinkingBudget").Int())
}

func TestThinkingModelBudget(t *testing.T) {
	body := []byte(`{"model":"gemini-2.5-flash-thinking","messages":[{"role":"user","content":"hi"}]}`)
	req, err := newTestAdapter().FromOpenAIChat(body, testView())
	require.NoError(t, err)

	gc := gjson.GetBytes(req.Payload, "request.generationConfig.thinkingConfig")
	assert.Equal(t, int64(1024), gc.Get("thinkingBudget").Int())
	assert.True(t, gc.Get("includeThoughts").Bool())
}

func TestImageModelConfig(t *testing.T) {
	body := []byte(`{"model":"gemini-2.5-flash-image","messages":[{"role":"user","content":"draw a cat"}]}`)
	req, err := newTestAdapter().FromOpenAIChat(body, testView())
	require.NoError(t, err)

	payload := string(req.Payload)
	assert.Equal(t, `["TEXT","IMAGE"]`,
		gjson.Get(payload, "request.generationConfig.responseModalities").Raw)
	assert.Contains(t, gjson.Get(payload, "request.systemInstruction.parts.0.text").String(), "image")
}

func TestFromGeminiPassthrough(t *testing.T) {
	body := []byte(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}],"generationConfig":{"temperature":0.2},"safetySettings":[{"category":"x"}],"tools":[{"functionDeclarations":[{"name":"f","parameters":{"type":"object","properties":{"x":{"type":"string","maxLength":4}}}}]}]}`)
	req, err := newTestAdapter().FromGemini(body, "gemini-2.5-flash", false, testView())
	require.NoError(t, err)

	payload := string(req.Payload)
	assert.False(t, gjson.Get(payload, "request.safetySettings").Exists())
	assert.Equal(t, 0.2, gjson.Get(payload, "request.generationConfig.temperature").Float())
	assert.Equal(t, 0.95, gjson.Get(payload, "request.generationConfig.topP").Float())
	params := gjson.Get(payload, "request.tools.0.functionDeclarations.0.parameters")
	assert.False(t, params.Get("properties.x.maxLength").Exists())
	assert.Contains(t, params.Get("description").String(), "maxLength: 4")
}

func TestFromClaudeMessages(t *testing.T) {
	body := []byte(`{"model":"claude-sonnet-4-5","max_tokens":1000,"system":"be terse","messages":[
		{"role":"user","content":[{"type":"text","text":"hello"}]},
		{"role":"assistant","content":[{"type":"text","text":"hi"},{"type":"tool_use","id":"tu_1","name":"f","input":{"a":1}}]},
		{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu_1","content":[{"type":"text","text":"done"}]}]}
	]}`)
	req, err := newTestAdapter().FromClaudeMessages(body, testView())
	require.NoError(t, err)

	payload := string(req.Payload)
	contents := gjson.Get(payload, "request.contents").Array()
	require.Len(t, contents, 4)
	assert.Equal(t, "be terse", contents[0].Get("parts.0.text").String())
	assert.Equal(t, "hello", contents[1].Get("parts.0.text").String())

	model := contents[2]
	assert.Equal(t, "hi", model.Get("parts.0.text").String())
	assert.Equal(t, "f", model.Get("parts.1.functionCall.name").String())
	assert.Equal(t, int64(1), model.Get("parts.1.functionCall.args.a").Int())

	assert.Equal(t, "f", contents[3].Get("parts.0.functionResponse.name").String())
	assert.Equal(t, "done", contents[3].Get("parts.0.functionResponse.response.result").String())
	assert.Equal(t, int64(1000), gjson.Get(payload, "request.generationConfig.maxOutputTokens").Int())
}

func TestRegisterResponseSignatures(t *testing.T) {
	a := newTestAdapter()
	events := [][]byte{
		[]byte(`{"response":{"candidates":[{"content":{"parts":[{"thought":true,"text":"pondering"}]}}]}}`),
		[]byte(`{"response":{"candidates":[{"content":{"parts":[{"text":"answer ","thoughtSignature":"` + testSig + `"}]}}]}}`),
		[]byte(`{"response":{"candidates":[{"content":{"parts":[{"text":"here"}]}}]}}`),
		[]byte(`{"response":{"candidates":[{"content":{"parts":[{"functionCall":{"id":"call_9","name":"f","args":{}},"thoughtSignature":"` + testSig + `"}]}}]}}`),
	}
	a.RegisterResponseSignatures(events)

	sig, ok := a.Signatures().ToolCall("call_9")
	assert.True(t, ok)
	assert.Equal(t, testSig, sig)

	sig, ok = a.Signatures().LookupText("answer here")
	assert.True(t, ok)
	assert.Equal(t, testSig, sig)
}
