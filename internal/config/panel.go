package config

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// CheckPanelPassword verifies a panel login attempt. A configured bcrypt
// hash takes precedence over the plaintext password.
func CheckPanelPassword(cfg *Config, candidate string) bool {
	if cfg == nil || candidate == "" {
		return false
	}
	if cfg.PanelPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.PanelPasswordHash), []byte(candidate)) == nil
	}
	if cfg.PanelPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cfg.PanelPassword), []byte(candidate)) == 1
}

// CheckPanelUser compares the supplied user name in constant time.
func CheckPanelUser(cfg *Config, candidate string) bool {
	if cfg == nil || cfg.PanelUser == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cfg.PanelUser), []byte(candidate)) == 1
}
