package config

import (
	"os"
	"strconv"
	"strings"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setStringFromEnv(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setIntFromEnv(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloatFromEnv(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBoolFromEnv(key string, dst *bool) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	}
}

func splitAndTrim(input, sep string) []string {
	parts := strings.Split(input, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c *Config) applyEnv() {
	setStringFromEnv("HOST", &c.Host)
	setStringFromEnv("PORT", &c.Port)
	setBoolFromEnv("DEBUG", &c.Debug)
	setStringFromEnv("LOG_FILE", &c.LogFile)

	setStringFromEnv("PANEL_USER", &c.PanelUser)
	setStringFromEnv("PANEL_PASSWORD", &c.PanelPassword)
	setStringFromEnv("PANEL_PASSWORD_HASH", &c.PanelPasswordHash)
	setStringFromEnv("API_KEY", &c.APIKey)
	setIntFromEnv("SESSION_TTL_HOURS", &c.SessionTTLHours)

	setStringFromEnv("OAUTH_CLIENT_ID", &c.OAuthClientID)
	setStringFromEnv("OAUTH_CLIENT_SECRET", &c.OAuthClientSecret)
	setStringFromEnv("OAUTH_REDIRECT_URL", &c.OAuthRedirectURL)

	setStringFromEnv("UPSTREAM_BASE_URL", &c.UpstreamBaseURL)
	setIntFromEnv("UPSTREAM_TIMEOUT_SEC", &c.UpstreamTimeoutSec)
	setStringFromEnv("PROXY_URL", &c.ProxyURL)

	setIntFromEnv("RETRY_MAX_ATTEMPTS", &c.RetryMaxAttempts)
	if v := os.Getenv("RETRY_STATUS_CODES"); v != "" {
		codes := make([]int, 0, 4)
		for _, part := range splitAndTrim(v, ",") {
			if n, err := strconv.Atoi(part); err == nil {
				codes = append(codes, n)
			}
		}
		if len(codes) > 0 {
			c.RetryStatusCodes = codes
		}
	}

	setIntFromEnv("HOURLY_LIMIT", &c.HourlyLimit)
	setBoolFromEnv("ALLOW_RANDOM_PROJECT_ID", &c.AllowRandomProjectID)
	setFloatFromEnv("REFRESH_ALL_RATE", &c.RefreshAllRate)

	setFloatFromEnv("TEMPERATURE", &c.Temperature)
	setFloatFromEnv("TOP_P", &c.TopP)
	setIntFromEnv("TOP_K", &c.TopK)
	setIntFromEnv("MAX_OUTPUT_TOKENS", &c.MaxOutputTokens)

	setIntFromEnv("MAX_LOG_ITEMS", &c.MaxLogItems)
	setIntFromEnv("LOG_RETENTION_DAYS", &c.LogRetentionDays)

	setStringFromEnv("STORAGE_BACKEND", &c.StorageBackend)
	setStringFromEnv("STORAGE_BASE_DIR", &c.StorageBaseDir)
	setStringFromEnv("REDIS_ADDR", &c.RedisAddr)
	setStringFromEnv("REDIS_PASSWORD", &c.RedisPassword)
	setIntFromEnv("REDIS_DB", &c.RedisDB)
	setStringFromEnv("REDIS_PREFIX", &c.RedisPrefix)
	setStringFromEnv("MONGODB_URI", &c.MongoURI)
	setStringFromEnv("MONGODB_DATABASE", &c.MongoDatabase)
	setStringFromEnv("POSTGRES_DSN", &c.PostgresDSN)
	setStringFromEnv("GIT_REMOTE_URL", &c.GitRemoteURL)
	setStringFromEnv("GIT_BRANCH", &c.GitBranch)
	setStringFromEnv("GIT_USERNAME", &c.GitUsername)
	setStringFromEnv("GIT_PASSWORD", &c.GitPassword)
	setStringFromEnv("GIT_AUTHOR_NAME", &c.GitAuthorName)
	setStringFromEnv("GIT_AUTHOR_EMAIL", &c.GitAuthorEmail)

	setStringFromEnv("IMAGE_STORAGE_MODE", &c.ImageStorageMode)
	setStringFromEnv("IMAGE_LOCAL_DIR", &c.ImageLocalDir)
	setStringFromEnv("IMAGE_BASE_URL", &c.ImageBaseURL)
	setStringFromEnv("MINIO_ENDPOINT", &c.MinioEndpoint)
	setStringFromEnv("MINIO_ACCESS_KEY", &c.MinioAccessKey)
	setStringFromEnv("MINIO_SECRET_KEY", &c.MinioSecretKey)
	setStringFromEnv("MINIO_BUCKET", &c.MinioBucket)
	setBoolFromEnv("MINIO_USE_SSL", &c.MinioUseSSL)

	setBoolFromEnv("TRACING_ENABLED", &c.TracingEnabled)
	setStringFromEnv("TRACING_ENDPOINT", &c.TracingEndpoint)
}
