package management

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"antigravity2api-go/internal/credential"
	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/handlers/common"
)

// ListAccounts serves GET /auth/accounts: the secret-free pool projection.
func (h *Handler) ListAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"accounts":     h.pool.Accounts(),
		"hourly_limit": h.pool.HourlyLimit(),
	})
}

// ImportTOML serves POST /auth/accounts/import-toml. The body is the raw
// TOML document; merge behavior comes from query flags.
func (h *Handler) ImportTOML(c *gin.Context) {
	body, err := common.ReadBody(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	records, err := credential.ParseTOML(body)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	replace := c.Query("replace_existing") == "true"
	filterDisabled := c.Query("filter_disabled") == "true"
	result, err := h.store.Import(c.Request.Context(), records, replace, filterDisabled)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	h.reloadPool(c)
	c.JSON(http.StatusOK, result)
}

// RefreshAccount serves POST /auth/accounts/:index/refresh.
func (h *Handler) RefreshAccount(c *gin.Context) {
	cred, ok := h.credAt(c)
	if !ok {
		return
	}
	if err := h.refreshOne(c.Request.Context(), cred); err != nil {
		if apperrors.IsKind(err, apperrors.KindUpstreamTerminal) {
			h.disableByToken(c, cred.RefreshToken)
		}
		common.RespondError(c, err)
		return
	}
	h.reloadPool(c)
	c.JSON(http.StatusOK, gin.H{"refreshed": true})
}

// RefreshAllAccounts serves POST /auth/accounts/refresh-all: best-effort bulk
// refresh, paced against the token endpoint.
func (h *Handler) RefreshAllAccounts(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := h.store.Enumerate(ctx)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	refreshed, failed := 0, 0
	for _, cred := range list {
		if !cred.Enabled {
			continue
		}
		if err := h.refreshLimiter.Wait(ctx); err != nil {
			break
		}
		if err := h.refreshOne(ctx, cred); err != nil {
			failed++
			log.WithError(err).WithField("project_id", cred.ProjectID).Warn("bulk refresh failed")
			if apperrors.IsKind(err, apperrors.KindUpstreamTerminal) {
				h.disableByToken(c, cred.RefreshToken)
			}
			continue
		}
		refreshed++
	}
	h.reloadPool(c)
	c.JSON(http.StatusOK, gin.H{"refreshed": refreshed, "failed": failed})
}

// SetAccountEnabled serves POST /auth/accounts/:index/enable with body
// {"enable": bool}.
func (h *Handler) SetAccountEnabled(c *gin.Context) {
	index, ok := h.indexParam(c)
	if !ok {
		return
	}
	var body struct {
		Enable *bool `json:"enable"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Enable == nil {
		common.RespondError(c, apperrors.BadRequest("body must carry an enable flag"))
		return
	}
	if err := h.store.SetEnabled(c.Request.Context(), index, *body.Enable); err != nil {
		common.RespondError(c, err)
		return
	}
	h.reloadPool(c)
	c.JSON(http.StatusOK, gin.H{"enabled": *body.Enable})
}

// DeleteAccount serves DELETE /auth/accounts/:index.
func (h *Handler) DeleteAccount(c *gin.Context) {
	index, ok := h.indexParam(c)
	if !ok {
		return
	}
	if err := h.store.RemoveAt(c.Request.Context(), index); err != nil {
		common.RespondError(c, err)
		return
	}
	h.reloadPool(c)
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// DeleteDisabledAccounts serves DELETE /auth/accounts/disabled.
func (h *Handler) DeleteDisabledAccounts(c *gin.Context) {
	removed, err := h.store.RemoveDisabled(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	h.reloadPool(c)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// RefreshAccountProjectID serves POST /auth/accounts/:index/refresh-project-id.
func (h *Handler) RefreshAccountProjectID(c *gin.Context) {
	cred, ok := h.credAt(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	accessToken := cred.AccessToken
	if !cred.FreshEnough(time.Now()) {
		tok, err := h.oauth.Refresh(ctx, cred.RefreshToken)
		if err != nil {
			common.RespondError(c, err)
			return
		}
		accessToken = tok.AccessToken
		if err := h.store.UpdateByToken(ctx, cred.RefreshToken, func(c *credential.Credential) {
			c.ApplyToken(tok.AccessToken, tok.ExpiresIn, time.Now())
		}); err != nil {
			common.RespondError(c, err)
			return
		}
	}

	projectID, err := h.oauth.ResolveProjectID(ctx, accessToken)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	if err := h.store.UpdateByToken(ctx, cred.RefreshToken, func(c *credential.Credential) {
		c.ProjectID = projectID
	}); err != nil {
		common.RespondError(c, err)
		return
	}
	h.reloadPool(c)
	c.JSON(http.StatusOK, gin.H{"project_id": projectID})
}

func (h *Handler) indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		common.RespondError(c, apperrors.BadRequest("index must be a non-negative integer"))
		return 0, false
	}
	return index, true
}

// credAt resolves the :index parameter against the current store snapshot.
func (h *Handler) credAt(c *gin.Context) (*credential.Credential, bool) {
	index, ok := h.indexParam(c)
	if !ok {
		return nil, false
	}
	list, err := h.store.Enumerate(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return nil, false
	}
	if index >= len(list) {
		common.RespondError(c, apperrors.BadRequest("credential index out of range"))
		return nil, false
	}
	return list[index], true
}

func (h *Handler) disableByToken(c *gin.Context, refreshToken string) {
	err := h.store.UpdateByToken(c.Request.Context(), refreshToken, func(cred *credential.Credential) {
		cred.Enabled = false
	})
	if err != nil {
		log.WithError(err).Error("disable after terminal refresh failed")
	}
}

func (h *Handler) reloadPool(c *gin.Context) {
	if err := h.pool.Reload(c.Request.Context()); err != nil {
		log.WithError(err).Error("pool reload after store mutation failed")
	}
}
