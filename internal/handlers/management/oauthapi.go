package management

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"antigravity2api-go/internal/credential"
	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/handlers/common"
	"antigravity2api-go/internal/oauth"
)

// defaultRedirectURI is the loopback redirect the desktop OAuth client
// registers; the pasted callback URL never has to be reachable.
const defaultRedirectURI = "http://localhost:45289"

// OAuthURL serves GET /auth/oauth/url: the consent URL to open in a browser.
func (h *Handler) OAuthURL(c *gin.Context) {
	state := uuid.NewString()
	c.JSON(http.StatusOK, gin.H{
		"auth_url": h.oauth.BuildAuthURL(h.redirectURI(), state),
		"state":    state,
	})
}

// OAuthParseURL serves POST /auth/oauth/parse-url: the operator pastes the
// full callback URL, and the handler runs code exchange, project resolution,
// and append.
func (h *Handler) OAuthParseURL(c *gin.Context) {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.URL == "" {
		common.RespondError(c, apperrors.BadRequest("body must carry the callback url"))
		return
	}

	code, _, err := oauth.ParseCallbackURL(body.URL)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	ctx := c.Request.Context()
	tok, err := h.oauth.ExchangeCode(ctx, code, h.redirectURI())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	if tok.RefreshToken == "" {
		common.RespondError(c, apperrors.AuthExchangeFailed("no refresh token in exchange response"))
		return
	}

	email, err := h.oauth.FetchUserEmail(ctx, tok.AccessToken)
	if err != nil {
		log.WithError(err).Debug("userinfo lookup failed, storing without email")
	}
	projectID, err := h.oauth.ResolveProjectID(ctx, tok.AccessToken)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	now := time.Now()
	cred := &credential.Credential{
		RefreshToken: tok.RefreshToken,
		AccessToken:  tok.AccessToken,
		ExpiresIn:    tok.ExpiresIn,
		IssuedAt:     now.UnixMilli(),
		ProjectID:    projectID,
		Email:        email,
		Enabled:      true,
		CreatedAt:    now.UnixMilli(),
	}
	index, err := h.store.Append(ctx, cred)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	h.reloadPool(c)

	c.JSON(http.StatusOK, gin.H{
		"index":      index,
		"project_id": projectID,
		"email":      email,
	})
}

func (h *Handler) redirectURI() string {
	if h.cfg.OAuthRedirectURL != "" {
		return h.cfg.OAuthRedirectURL
	}
	return defaultRedirectURI
}
