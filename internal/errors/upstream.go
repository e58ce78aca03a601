package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// MapUpstreamStatus classifies a non-2xx upstream response. Statuses listed in
// retryStatuses become transient; 401/403 are terminal for the credential that
// issued the call; everything else propagates as-is.
func MapUpstreamStatus(status int, body []byte, header http.Header, retryStatuses []int) *APIError {
	msg := extractUpstreamMessage(body)

	for _, code := range retryStatuses {
		if status == code {
			apiErr := New(KindUpstreamTransient, status, "upstream_transient", "server_error",
				firstNonEmpty(msg, fmt.Sprintf("upstream returned HTTP %d", status)))
			apiErr.RetryAfter = retryDelay(status, body, header)
			return apiErr
		}
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return New(KindUpstreamTerminal, status, "upstream_rejected_credential", "permission_error",
			firstNonEmpty(msg, "upstream rejected the credential"))
	default:
		return New(KindUpstreamOther, status, "upstream_error", "server_error",
			firstNonEmpty(msg, fmt.Sprintf("upstream returned HTTP %d", status)))
	}
}

// MapNetworkError classifies transport-level failures. Client cancellation is
// deliberately not retryable and must not mark the credential bad.
func MapNetworkError(err error) *APIError {
	if errors.Is(err, context.Canceled) {
		return New(KindUpstreamOther, 499, "request_canceled", "timeout_error", "request canceled by client")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindUpstreamTransient, http.StatusGatewayTimeout, "upstream_timeout", "timeout_error",
			"upstream request timed out")
	}
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused"),
		strings.Contains(errMsg, "connection reset"),
		strings.Contains(errMsg, "EOF"):
		return New(KindUpstreamTransient, http.StatusBadGateway, "connection_error", "server_error",
			"upstream connection error: "+errMsg)
	case strings.Contains(errMsg, "no such host"):
		return New(KindUpstreamOther, http.StatusBadGateway, "dns_error", "server_error",
			"upstream DNS error: "+errMsg)
	default:
		return New(KindUpstreamOther, http.StatusBadGateway, "network_error", "server_error",
			"network error: "+errMsg)
	}
}

// retryDelay extracts a server-suggested wait from a 429 response: the
// Retry-After header in seconds, or a google.rpc.RetryInfo detail in the body.
func retryDelay(status int, body []byte, header http.Header) time.Duration {
	if status != http.StatusTooManyRequests {
		return 0
	}
	if header != nil {
		if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	details := gjson.GetBytes(body, "error.details")
	if details.IsArray() {
		for _, detail := range details.Array() {
			if !strings.Contains(detail.Get("@type").String(), "RetryInfo") {
				continue
			}
			if d, err := time.ParseDuration(detail.Get("retryDelay").String()); err == nil && d > 0 {
				return d
			}
		}
	}
	return 0
}

func extractUpstreamMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
		return msg
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		return msg[:200] + "..."
	}
	return msg
}

func firstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}
