package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Constructors for the gateway error taxonomy. Handlers and the orchestrator
// create errors exclusively through these so that Kind stays authoritative.

func BadRequest(message string) *APIError {
	return New(KindBadRequest, http.StatusBadRequest, "invalid_request_error", "invalid_request_error", message)
}

// AuthMissing signals that the shared API key is not configured on the server.
func AuthMissing() *APIError {
	return New(KindAuthMissing, http.StatusServiceUnavailable, "api_key_unconfigured", "authentication_error",
		"API key is not configured on this gateway")
}

func AuthInvalid() *APIError {
	return New(KindAuthInvalid, http.StatusUnauthorized, "invalid_api_key", "authentication_error",
		"Invalid API key")
}

func NoCredentialAvailable(reason string) *APIError {
	msg := "no credential available"
	if reason != "" {
		msg = fmt.Sprintf("no credential available: %s", reason)
	}
	return New(KindNoCredentialAvailable, http.StatusServiceUnavailable, "no_credential_available", "server_error", msg)
}

func CredentialNotFound(projectID string) *APIError {
	return New(KindCredentialNotFound, http.StatusNotFound, "credential_not_found", "invalid_request_error",
		fmt.Sprintf("credential %q not found", projectID))
}

func AuthExchangeFailed(upstreamMsg string) *APIError {
	return New(KindAuthExchangeFailed, http.StatusInternalServerError, "auth_exchange_failed", "server_error",
		fmt.Sprintf("OAuth code exchange failed: %s", upstreamMsg))
}

func ProjectIDMissing() *APIError {
	return New(KindProjectIDMissing, http.StatusBadRequest, "project_id_missing", "invalid_request_error",
		"unable to resolve a project id for this credential")
}

func StorageCorrupt(err error) *APIError {
	return New(KindStorageCorrupt, http.StatusInternalServerError, "storage_corrupt", "server_error",
		fmt.Sprintf("persistent state is unreadable: %v", err))
}

// AsAPIError unwraps err to an *APIError, or wraps it as a generic 500.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return New(KindUpstreamOther, http.StatusInternalServerError, "internal_error", "server_error", err.Error())
}

// IsKind reports whether err is an *APIError of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}
