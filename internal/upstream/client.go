// Package upstream talks to the Code Assist generate endpoints. It maps
// non-2xx responses into the error taxonomy and leaves credential rotation to
// the caller; the only retry performed here is the short in-attempt backoff
// on 503 "no capacity" responses.
package upstream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"antigravity2api-go/internal/constants"
	apperrors "antigravity2api-go/internal/errors"
)

const noCapacityAttempts = 3

// Client issues authenticated calls against the upstream endpoint family.
type Client struct {
	http          *http.Client
	endpoint      string
	retryStatuses []int
	sleep         func(context.Context, time.Duration) error
}

// Option customizes client creation.
type Option func(*Client)

// WithHTTPClient overrides the outbound HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithEndpoint overrides the upstream base endpoint, for tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithRetryStatuses sets the statuses classified as transient.
func WithRetryStatuses(statuses []int) Option {
	return func(c *Client) {
		if len(statuses) > 0 {
			c.retryStatuses = statuses
		}
	}
}

// NewClient creates an upstream client with the production endpoint.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:          &http.Client{},
		endpoint:      constants.UpstreamEndpoint,
		retryStatuses: constants.DefaultRetryStatusCodes,
		sleep:         sleepCtx,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Generate performs a non-streaming generateContent call and returns the
// response body.
func (c *Client) Generate(ctx context.Context, accessToken string, payload []byte) ([]byte, error) {
	resp, err := c.post(ctx, accessToken, constants.MethodGenerate, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.MapNetworkError(err)
	}
	return body, nil
}

// StreamGenerate opens a streaming generateContent call. The caller owns the
// returned stream and must Close it.
func (c *Client) StreamGenerate(ctx context.Context, accessToken string, payload []byte) (*Stream, error) {
	resp, err := c.post(ctx, accessToken, constants.MethodStreamGenerate+constants.StreamQuery, payload)
	if err != nil {
		return nil, err
	}
	return NewStream(resp), nil
}

// CountTokens proxies a countTokens call.
func (c *Client) CountTokens(ctx context.Context, accessToken string, payload []byte) ([]byte, error) {
	resp, err := c.post(ctx, accessToken, constants.MethodCountTokens, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.MapNetworkError(err)
	}
	return body, nil
}

// FetchModels lists the model ids the upstream offers, skipping the internal
// chat_* entries. Best-effort: callers fall back to the static registry.
func (c *Client) FetchModels(ctx context.Context, accessToken string) ([]string, error) {
	resp, err := c.post(ctx, accessToken, constants.MethodFetchModels, []byte(`{}`))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.MapNetworkError(err)
	}

	var ids []string
	for id := range gjson.GetBytes(body, "models").Map() {
		id = strings.TrimSpace(id)
		if id == "" || strings.HasPrefix(id, "chat_") {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// post issues one authenticated POST, absorbing short 503 no-capacity blips.
// Any other non-2xx response is closed and mapped into the error taxonomy.
func (c *Client) post(ctx context.Context, accessToken, method string, payload []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < noCapacityAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+method, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("User-Agent", constants.UpstreamUserAgent)
		req.Header.Set("X-Goog-Api-Client", constants.UpstreamAPIClient)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, apperrors.MapNetworkError(err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		if resp.StatusCode == http.StatusServiceUnavailable && isNoCapacity(body) && attempt < noCapacityAttempts-1 {
			delay := time.Duration(attempt+1) * 500 * time.Millisecond
			if delay > constants.NoCapacityRetryCeiling {
				delay = constants.NoCapacityRetryCeiling
			}
			log.WithField("delay", delay).Debug("upstream reported no capacity, backing off")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			lastErr = apperrors.MapUpstreamStatus(resp.StatusCode, body, resp.Header, c.retryStatuses)
			continue
		}
		return nil, apperrors.MapUpstreamStatus(resp.StatusCode, body, resp.Header, c.retryStatuses)
	}
	return nil, lastErr
}

func isNoCapacity(body []byte) bool {
	return bytes.Contains(bytes.ToLower(body), []byte("no capacity"))
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
