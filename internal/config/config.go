package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"antigravity2api-go/internal/constants"
)

// Config holds every runtime setting for the gateway. Values come from
// built-in defaults, then an optional config file, then environment
// variables; later sources win.
type Config struct {
	// Server
	Host    string `yaml:"host" json:"host"`
	Port    string `yaml:"port" json:"port"`
	Debug   bool   `yaml:"debug" json:"debug"`
	LogFile string `yaml:"log_file" json:"log_file"`

	// Panel and API auth
	PanelUser         string `yaml:"panel_user" json:"panel_user"`
	PanelPassword     string `yaml:"panel_password" json:"panel_password"`
	PanelPasswordHash string `yaml:"panel_password_hash" json:"panel_password_hash"`
	APIKey            string `yaml:"api_key" json:"api_key"`
	SessionTTLHours   int    `yaml:"session_ttl_hours" json:"session_ttl_hours"`

	// OAuth overrides; defaults come from constants.
	OAuthClientID     string `yaml:"oauth_client_id" json:"oauth_client_id"`
	OAuthClientSecret string `yaml:"oauth_client_secret" json:"oauth_client_secret"`
	OAuthRedirectURL  string `yaml:"oauth_redirect_url" json:"oauth_redirect_url"`

	// Upstream
	UpstreamBaseURL    string `yaml:"upstream_base_url" json:"upstream_base_url"`
	UpstreamTimeoutSec int    `yaml:"upstream_timeout_sec" json:"upstream_timeout_sec"`
	ProxyURL           string `yaml:"proxy_url" json:"proxy_url"`

	// Retry
	RetryMaxAttempts int   `yaml:"retry_max_attempts" json:"retry_max_attempts"`
	RetryStatusCodes []int `yaml:"retry_status_codes" json:"retry_status_codes"`

	// Credential pool
	HourlyLimit          int     `yaml:"hourly_limit" json:"hourly_limit"`
	AllowRandomProjectID bool    `yaml:"allow_random_project_id" json:"allow_random_project_id"`
	RefreshAllRate       float64 `yaml:"refresh_all_rate" json:"refresh_all_rate"`

	// Generation defaults
	Temperature     float64 `yaml:"temperature" json:"temperature"`
	TopP            float64 `yaml:"top_p" json:"top_p"`
	TopK            int     `yaml:"top_k" json:"top_k"`
	MaxOutputTokens int     `yaml:"max_output_tokens" json:"max_output_tokens"`

	// Usage log
	MaxLogItems      int `yaml:"max_log_items" json:"max_log_items"`
	LogRetentionDays int `yaml:"log_retention_days" json:"log_retention_days"`

	// Storage
	StorageBackend string `yaml:"storage_backend" json:"storage_backend"`
	StorageBaseDir string `yaml:"storage_base_dir" json:"storage_base_dir"`
	RedisAddr      string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword  string `yaml:"redis_password" json:"redis_password"`
	RedisDB        int    `yaml:"redis_db" json:"redis_db"`
	RedisPrefix    string `yaml:"redis_prefix" json:"redis_prefix"`
	MongoURI       string `yaml:"mongodb_uri" json:"mongodb_uri"`
	MongoDatabase  string `yaml:"mongodb_database" json:"mongodb_database"`
	PostgresDSN    string `yaml:"postgres_dsn" json:"postgres_dsn"`
	GitRemoteURL   string `yaml:"git_remote_url" json:"git_remote_url"`
	GitBranch      string `yaml:"git_branch" json:"git_branch"`
	GitUsername    string `yaml:"git_username" json:"git_username"`
	GitPassword    string `yaml:"git_password" json:"git_password"`
	GitAuthorName  string `yaml:"git_author_name" json:"git_author_name"`
	GitAuthorEmail string `yaml:"git_author_email" json:"git_author_email"`

	// Generated images
	ImageStorageMode string `yaml:"image_storage_mode" json:"image_storage_mode"`
	ImageLocalDir    string `yaml:"image_local_dir" json:"image_local_dir"`
	ImageBaseURL     string `yaml:"image_base_url" json:"image_base_url"`
	MinioEndpoint    string `yaml:"minio_endpoint" json:"minio_endpoint"`
	MinioAccessKey   string `yaml:"minio_access_key" json:"minio_access_key"`
	MinioSecretKey   string `yaml:"minio_secret_key" json:"minio_secret_key"`
	MinioBucket      string `yaml:"minio_bucket" json:"minio_bucket"`
	MinioUseSSL      bool   `yaml:"minio_use_ssl" json:"minio_use_ssl"`

	// Tracing
	TracingEnabled  bool   `yaml:"tracing_enabled" json:"tracing_enabled"`
	TracingEndpoint string `yaml:"tracing_endpoint" json:"tracing_endpoint"`
}

// Defaults returns a Config populated with built-in defaults only.
func Defaults() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               constants.DefaultPort,
		SessionTTLHours:    24,
		UpstreamTimeoutSec: int(constants.DefaultUpstreamTimeout.Seconds()),
		RetryMaxAttempts:   constants.DefaultRetryMaxAttempts,
		RetryStatusCodes:   append([]int(nil), constants.DefaultRetryStatusCodes...),
		HourlyLimit:        constants.DefaultHourlyLimit,
		RefreshAllRate:     2,
		Temperature:        constants.DefaultTemperature,
		TopP:               constants.DefaultTopP,
		TopK:               constants.DefaultTopK,
		MaxOutputTokens:    constants.DefaultMaxOutputTokens,
		MaxLogItems:        constants.DefaultMaxLogItems,
		LogRetentionDays:   constants.DefaultRetentionDays,
		StorageBackend:     "file",
		StorageBaseDir:     "./data",
		RedisPrefix:        "antigravity:",
		MongoDatabase:      "antigravity",
		GitBranch:          "main",
		GitAuthorName:      "antigravity2api",
		GitAuthorEmail:     "antigravity2api@localhost",
		ImageStorageMode:   "base64",
		ImageLocalDir:      "./data/images",
	}
}

// Load reads configuration from an optional .env file, the config file
// named by CONFIG_FILE, and the process environment.
func Load() (*Config, error) {
	return LoadWithFile(os.Getenv("CONFIG_FILE"))
}

// LoadWithFile is Load with an explicit config file path. An empty path
// means environment-only.
func LoadWithFile(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env")
	}

	cfg := Defaults()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			if err := json.Unmarshal(data, c); err != nil {
				return fmt.Errorf("parse config file %s (tried YAML and JSON)", path)
			}
		}
	}

	log.WithField("path", path).Info("configuration file loaded")
	return nil
}

func (c *Config) normalize() {
	if c.UpstreamBaseURL == "" {
		c.UpstreamBaseURL = constants.UpstreamBaseURL
	}
	c.UpstreamBaseURL = strings.TrimRight(c.UpstreamBaseURL, "/")
	if c.OAuthClientID == "" {
		c.OAuthClientID = constants.OAuthClientID
	}
	if c.OAuthClientSecret == "" {
		c.OAuthClientSecret = constants.OAuthClientSecret
	}
	if c.UpstreamTimeoutSec <= 0 {
		c.UpstreamTimeoutSec = int(constants.DefaultUpstreamTimeout.Seconds())
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = constants.DefaultRetryMaxAttempts
	}
	if len(c.RetryStatusCodes) == 0 {
		c.RetryStatusCodes = append([]int(nil), constants.DefaultRetryStatusCodes...)
	}
	if c.HourlyLimit <= 0 {
		c.HourlyLimit = constants.DefaultHourlyLimit
	}
	if c.MaxLogItems <= 0 {
		c.MaxLogItems = constants.DefaultMaxLogItems
	}
	if c.SessionTTLHours <= 0 {
		c.SessionTTLHours = 24
	}
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if c.StorageBackend == "" {
		c.StorageBackend = "file"
	}
	c.ImageStorageMode = strings.ToLower(strings.TrimSpace(c.ImageStorageMode))
	if c.ImageStorageMode == "" {
		c.ImageStorageMode = "base64"
	}
}

// CredentialsPath returns the file-backend location of the credential store.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.StorageBaseDir, "creds.json")
}
