package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError describes one invalid configuration value.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s=%s]: %s", e.Field, e.Value, e.Message)
}

// ValidationResult collects errors and warnings from Validate.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
	Valid    bool
}

func (r *ValidationResult) addError(field, value, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message})
	r.Valid = false
}

func (r *ValidationResult) addWarning(field, value, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Value: value, Message: message})
}

// MissingRequired names the start-up settings without which the process
// must not run.
func (c *Config) MissingRequired() []string {
	var missing []string
	if c.PanelUser == "" {
		missing = append(missing, "PANEL_USER")
	}
	if c.PanelPassword == "" && c.PanelPasswordHash == "" {
		missing = append(missing, "PANEL_PASSWORD")
	}
	if c.APIKey == "" {
		missing = append(missing, "API_KEY")
	}
	return missing
}

// Validate checks value ranges and backend-specific requirements.
func (c *Config) Validate() ValidationResult {
	result := ValidationResult{Valid: true}

	if err := validatePort(c.Port); err != nil {
		result.addError("port", c.Port, err.Error())
	}

	switch c.StorageBackend {
	case "file", "":
	case "redis":
		if c.RedisAddr == "" {
			result.addError("redis_addr", "", "required when using redis backend")
		}
	case "mongodb":
		if c.MongoURI == "" {
			result.addError("mongodb_uri", "", "required when using mongodb backend")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			result.addError("postgres_dsn", "", "required when using postgres backend")
		}
	case "git":
		if c.GitRemoteURL == "" {
			result.addWarning("git_remote_url", "", "git backend without a remote keeps history locally only")
		}
	default:
		result.addError("storage_backend", c.StorageBackend,
			"must be one of: file, redis, mongodb, postgres, git")
	}

	switch c.ImageStorageMode {
	case "base64", "local", "":
	case "minio":
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			result.addError("minio_endpoint", c.MinioEndpoint,
				"minio image storage needs minio_endpoint and minio_bucket")
		}
	default:
		result.addError("image_storage_mode", c.ImageStorageMode,
			"must be one of: base64, local, minio")
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		result.addWarning("temperature", fmt.Sprintf("%v", c.Temperature), "outside the usual 0..2 range")
	}
	if c.RetryMaxAttempts > 10 {
		result.addWarning("retry_max_attempts", strconv.Itoa(c.RetryMaxAttempts), "unusually high retry count")
	}
	for _, code := range c.RetryStatusCodes {
		if code < 400 || code > 599 {
			result.addError("retry_status_codes", strconv.Itoa(code), "must be a 4xx or 5xx status")
		}
	}

	if c.ProxyURL != "" && !strings.Contains(c.ProxyURL, "://") {
		result.addError("proxy_url", c.ProxyURL, "must include a scheme, e.g. http:// or socks5://")
	}

	return result
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("out of range 1-65535")
	}
	return nil
}
