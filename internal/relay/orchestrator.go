// Package relay orchestrates one inbound chat request end to end: credential
// selection, translation, the upstream call with retry, response re-emission,
// and the usage log append.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"antigravity2api-go/internal/constants"
	"antigravity2api-go/internal/credential"
	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/streaming"
	"antigravity2api-go/internal/translator"
	"antigravity2api-go/internal/upstream"
	"antigravity2api-go/internal/usage"
)

// Dialect names the client-facing API surface a request arrived on.
type Dialect string

const (
	DialectOpenAI Dialect = "openai"
	DialectClaude Dialect = "claude"
	DialectGemini Dialect = "gemini"
)

// ErrorFormat maps the dialect to its error envelope.
func (d Dialect) ErrorFormat() apperrors.ErrorFormat {
	switch d {
	case DialectClaude:
		return apperrors.FormatClaude
	case DialectGemini:
		return apperrors.FormatGemini
	default:
		return apperrors.FormatOpenAI
	}
}

// Request is one inbound chat call, already read off the wire.
type Request struct {
	Dialect Dialect
	Body    []byte

	// Gemini carries model and stream in the URL; the other dialects carry
	// them in the body and leave these zero.
	Model  string
	Stream bool

	// ForcedProjectID pins the request to one credential.
	ForcedProjectID string

	Headers http.Header
	Method  string
	Path    string
}

// Orchestrator owns the request pipeline shared by all three dialects.
type Orchestrator struct {
	pool    *credential.Pool
	client  *upstream.Client
	adapter *translator.Adapter
	engine  *streaming.Engine
	logs    *usage.Store

	maxAttempts int
	detailMax   int
	sleep       func(context.Context, time.Duration) error
}

// New wires an orchestrator. maxAttempts bounds the retry loop including the
// first try.
func New(pool *credential.Pool, client *upstream.Client, adapter *translator.Adapter,
	engine *streaming.Engine, logs *usage.Store, maxAttempts int) *Orchestrator {
	if maxAttempts <= 0 {
		maxAttempts = constants.DefaultRetryMaxAttempts
	}
	return &Orchestrator{
		pool:        pool,
		client:      client,
		adapter:     adapter,
		engine:      engine,
		logs:        logs,
		maxAttempts: maxAttempts,
		detailMax:   constants.DefaultLogDetailMaxSize,
		sleep:       sleepCtx,
	}
}

// Handle runs the request to completion and writes the response. Exactly one
// usage log entry is appended per call, success or not.
func (o *Orchestrator) Handle(ctx context.Context, w http.ResponseWriter, req *Request) {
	start := time.Now()
	entry := &usage.Entry{
		Method: req.Method,
		Path:   req.Path,
		Detail: &usage.Detail{
			Request: &usage.RequestSnapshot{
				Headers: usage.SanitizeHeaders(req.Headers),
				Body:    o.capBody(req.Body),
			},
		},
	}
	defer func() {
		entry.DurationMS = time.Since(start).Milliseconds()
		o.logs.Append(context.WithoutCancel(ctx), entry)
	}()

	sw := streaming.NewWriter(w)
	var lastErr *apperrors.APIError

	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		view, err := o.acquire(ctx, req)
		if err != nil {
			lastErr = apperrors.AsAPIError(err)
			break
		}
		entry.ProjectID = view.ProjectID

		ureq, err := o.adapt(req, view)
		if err != nil {
			lastErr = apperrors.AsAPIError(err)
			break
		}
		entry.Model = ureq.Model

		apiErr := o.execute(ctx, w, sw, req, ureq, view, entry)
		if apiErr == nil {
			o.pool.RecordOutcome(view.ProjectID, true, ureq.Model)
			entry.Success = true
			entry.StatusCode = http.StatusOK
			return
		}
		o.pool.RecordOutcome(view.ProjectID, false, ureq.Model)
		lastErr = apiErr

		// Once bytes went out the error was already surfaced in-stream.
		if sw.Started() {
			entry.StatusCode = apiErr.HTTPStatus
			entry.Message = apiErr.Message
			return
		}

		switch apiErr.Kind {
		case apperrors.KindUpstreamTerminal:
			log.WithField("project_id", view.ProjectID).
				Warn("upstream rejected credential, disabling and rotating")
			o.pool.Disable(ctx, view.ProjectID)
			continue
		case apperrors.KindUpstreamTransient:
			if apiErr.RetryAfter > 0 {
				if err := o.sleep(ctx, apiErr.RetryAfter); err != nil {
					lastErr = apperrors.MapNetworkError(err)
					attempt = o.maxAttempts
				}
			}
			continue
		default:
			attempt = o.maxAttempts
		}
	}

	if lastErr == nil {
		lastErr = apperrors.NoCredentialAvailable("")
	}
	entry.StatusCode = lastErr.HTTPStatus
	entry.Message = lastErr.Message
	WriteError(w, req.Dialect, lastErr)
}

// acquire picks a credential, honoring a forced project id when set.
func (o *Orchestrator) acquire(ctx context.Context, req *Request) (credential.View, error) {
	if req.ForcedProjectID != "" {
		return o.pool.AcquireByProjectID(ctx, req.ForcedProjectID)
	}
	return o.pool.Acquire(ctx)
}

func (o *Orchestrator) adapt(req *Request, view credential.View) (*translator.UpstreamRequest, error) {
	switch req.Dialect {
	case DialectClaude:
		return o.adapter.FromClaudeMessages(req.Body, view)
	case DialectGemini:
		return o.adapter.FromGemini(req.Body, req.Model, req.Stream, view)
	default:
		return o.adapter.FromOpenAIChat(req.Body, view)
	}
}

// execute performs one upstream attempt and writes the response on success.
func (o *Orchestrator) execute(ctx context.Context, w http.ResponseWriter, sw *streaming.Writer, req *Request,
	ureq *translator.UpstreamRequest, view credential.View, entry *usage.Entry) *apperrors.APIError {
	if ureq.Stream {
		return o.executeStream(ctx, sw, req, ureq, view, entry)
	}
	return o.executeBuffered(ctx, w, req, ureq, view, entry)
}

func (o *Orchestrator) executeBuffered(ctx context.Context, w http.ResponseWriter, req *Request,
	ureq *translator.UpstreamRequest, view credential.View, entry *usage.Entry) *apperrors.APIError {
	body, err := o.client.Generate(ctx, view.AccessToken, ureq.Payload)
	if err != nil {
		return apperrors.AsAPIError(err)
	}
	o.adapter.RegisterResponseSignatures([][]byte{body})
	extra := o.engine.CollectImages(ctx, body)

	var out []byte
	switch req.Dialect {
	case DialectClaude:
		out, err = streaming.BuildClaudeResponse(ureq.Model, body, extra)
	case DialectGemini:
		out, err = streaming.BuildGeminiResponse(body, extra)
	default:
		out, err = streaming.BuildOpenAIResponse(ureq.Model, body, extra)
	}
	if err != nil {
		return apperrors.AsAPIError(err)
	}

	entry.Detail.Response = &usage.ResponseSnapshot{Body: o.capBody(out)}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		log.WithError(err).Debug("client went away before response write")
	}
	return nil
}

func (o *Orchestrator) executeStream(ctx context.Context, sw *streaming.Writer, req *Request,
	ureq *translator.UpstreamRequest, view credential.View, entry *usage.Entry) *apperrors.APIError {
	stream, err := o.client.StreamGenerate(ctx, view.AccessToken, ureq.Payload)
	if err != nil {
		return apperrors.AsAPIError(err)
	}
	defer stream.Close()

	var sink streaming.Sink
	switch req.Dialect {
	case DialectClaude:
		sink = streaming.NewClaudeSink(sw, ureq.Model, len(req.Body))
	case DialectGemini:
		sink = streaming.NewGeminiSink(sw)
	default:
		sink = streaming.NewOpenAISink(sw, ureq.Model)
	}

	result, consumeErr := o.engine.Consume(ctx, stream, sink)
	o.adapter.RegisterResponseSignatures(result.Raw)

	entry.Detail.Response = &usage.ResponseSnapshot{
		Events:  result.LogEvents,
		Summary: usage.SummarizeStream(result.LogEvents),
	}

	if consumeErr != nil {
		apiErr := apperrors.AsAPIError(consumeErr)
		if sw.Started() {
			if failErr := sink.Fail(apiErr); failErr != nil {
				log.WithError(failErr).Debug("client went away during stream error emission")
			}
		}
		return apiErr
	}
	if err := sink.Finish(); err != nil {
		log.WithError(err).Debug("client went away before stream finish")
	}
	return nil
}

// capBody drops oversized payloads from the log detail instead of truncating
// them into invalid JSON.
func (o *Orchestrator) capBody(body []byte) json.RawMessage {
	if len(body) == 0 || len(body) > o.detailMax {
		return nil
	}
	return json.RawMessage(append([]byte(nil), body...))
}

// WriteError renders an APIError in the dialect's envelope.
func WriteError(w http.ResponseWriter, dialect Dialect, apiErr *apperrors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	w.Write(apiErr.ToJSON(dialect.ErrorFormat()))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
