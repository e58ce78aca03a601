// Package management serves the panel API: account administration, OAuth
// onboarding, and the request log views.
package management

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"antigravity2api-go/internal/config"
	"antigravity2api-go/internal/credential"
	"antigravity2api-go/internal/logging"
	"antigravity2api-go/internal/oauth"
	"antigravity2api-go/internal/usage"
)

// Handler aggregates the dependencies of the panel API.
type Handler struct {
	cfg   *config.Config
	store *credential.Store
	pool  *credential.Pool
	oauth *oauth.Client
	logs  *usage.Store
	hub   *logging.Hub

	// refreshLimiter paces bulk refreshes against the token endpoint.
	refreshLimiter *rate.Limiter
}

func New(cfg *config.Config, store *credential.Store, pool *credential.Pool,
	oauthClient *oauth.Client, logs *usage.Store, hub *logging.Hub) *Handler {
	perSecond := cfg.RefreshAllRate
	if perSecond <= 0 {
		perSecond = 2
	}
	return &Handler{
		cfg:            cfg,
		store:          store,
		pool:           pool,
		oauth:          oauthClient,
		logs:           logs,
		hub:            hub,
		refreshLimiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// refreshOne refreshes a single credential record and writes the new token
// back. A terminal rejection disables the record instead.
func (h *Handler) refreshOne(ctx context.Context, cred *credential.Credential) error {
	tok, err := h.oauth.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return err
	}
	return h.store.UpdateByToken(ctx, cred.RefreshToken, func(c *credential.Credential) {
		c.ApplyToken(tok.AccessToken, tok.ExpiresIn, time.Now())
	})
}
