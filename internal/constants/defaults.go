package constants

import "time"

// Server defaults.
const (
	DefaultPort           = "8045"
	ServerShutdownTimeout = 5 * time.Second
)

// Credential pool defaults.
const (
	DefaultHourlyLimit = 20
	// FreshnessSkew is subtracted from token expiry: a token with less than
	// this much life left triggers an in-line refresh before use.
	FreshnessSkew = 5 * time.Minute
	UsageWindow   = 60 * time.Minute
)

// Upstream call defaults.
const (
	DefaultUpstreamTimeout  = 180 * time.Second
	DefaultRetryMaxAttempts = 3
	OnboardPollInterval     = 2 * time.Second
	NoCapacityRetryCeiling  = 2 * time.Second
)

// DefaultRetryStatusCodes are the upstream statuses retried with a fresh credential.
var DefaultRetryStatusCodes = []int{429, 500}

// Generation defaults applied when the client omits sampling parameters.
const (
	DefaultTemperature     = 1.0
	DefaultTopP            = 0.95
	DefaultTopK            = 64
	DefaultMaxOutputTokens = 65535
	ThinkingBudgetOn       = 1024
	ThinkingBudgetOff      = 0
)

// Usage log defaults.
const (
	DefaultMaxLogItems      = 500
	DefaultRetentionDays    = 7
	DefaultLogDetailMaxSize = 256 * 1024
)

// Panel session lifetime.
const PanelSessionTTL = 24 * time.Hour

// StopSequences is always sent upstream regardless of client-provided stops.
var StopSequences = []string{"<|user|>", "<|bot|>", "<|context_request|>", "<|endoftext|>", "<|end_of_turn|>"}
