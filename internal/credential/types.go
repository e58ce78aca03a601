// Package credential holds the persistent OAuth credential records, their
// on-disk store, and the selection pool that hands credentials to the
// request path.
package credential

import (
	"time"

	"antigravity2api-go/internal/constants"
)

// Credential is one persisted OAuth record capable of calling the upstream.
// RefreshToken is the unique logical key; at most one record exists per
// refresh token.
type Credential struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	IssuedAt     int64  `json:"issued_at,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
	Email        string `json:"email,omitempty"`
	Enabled      bool   `json:"enabled"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

// FreshEnough reports whether the access token still has more than the
// freshness skew of life left. A credential that fails this check must be
// refreshed before use.
func (c *Credential) FreshEnough(now time.Time) bool {
	if c.AccessToken == "" {
		return false
	}
	expiryMS := c.IssuedAt + c.ExpiresIn*1000
	return expiryMS-now.UnixMilli() > constants.FreshnessSkew.Milliseconds()
}

// ApplyToken writes a refreshed access token onto the record.
func (c *Credential) ApplyToken(accessToken string, expiresIn int64, now time.Time) {
	c.AccessToken = accessToken
	c.ExpiresIn = expiresIn
	c.IssuedAt = now.UnixMilli()
}

// Clone returns a copy safe to hand outside the pool lock.
func (c *Credential) Clone() *Credential {
	cp := *c
	return &cp
}

// View is the projection handed to the request path. It carries only what
// routing needs and never the refresh token.
type View struct {
	AccessToken string
	ProjectID   string
	SessionID   string
	Email       string
	Index       int
}

// AccountInfo is the secret-free projection served to the panel.
type AccountInfo struct {
	Index     int    `json:"index"`
	ProjectID string `json:"project_id"`
	Email     string `json:"email,omitempty"`
	Enabled   bool   `json:"enabled"`
	Fresh     bool   `json:"fresh"`
	CreatedAt int64  `json:"created_at,omitempty"`
}
