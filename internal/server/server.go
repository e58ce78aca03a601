// Package server assembles the gin engine: middleware chain, the three API
// surfaces, the panel API, and the HTTP lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"antigravity2api-go/internal/config"
	"antigravity2api-go/internal/constants"
	"antigravity2api-go/internal/credential"
	"antigravity2api-go/internal/discovery"
	ch "antigravity2api-go/internal/handlers/claude"
	gh "antigravity2api-go/internal/handlers/gemini"
	mh "antigravity2api-go/internal/handlers/management"
	oh "antigravity2api-go/internal/handlers/openai"
	"antigravity2api-go/internal/logging"
	"antigravity2api-go/internal/middleware"
	"antigravity2api-go/internal/monitoring"
	"antigravity2api-go/internal/oauth"
	"antigravity2api-go/internal/relay"
	"antigravity2api-go/internal/usage"
	"antigravity2api-go/internal/version"
)

// Dependencies carries the runtime services the engine mounts.
type Dependencies struct {
	Store        *credential.Store
	Pool         *credential.Pool
	OAuth        *oauth.Client
	Logs         *usage.Store
	Hub          *logging.Hub
	Orchestrator *relay.Orchestrator
	Discovery    *discovery.Service
	Sessions     *SessionStore
}

// NewEngine builds the full gin engine for the gateway.
func NewEngine(cfg *config.Config, deps Dependencies) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestLogger(), monitoring.GinTracing())

	openaiHandler := oh.New(deps.Orchestrator, deps.Discovery)
	claudeHandler := ch.New(deps.Orchestrator)
	geminiHandler := gh.New(deps.Orchestrator)
	mgmt := mh.New(cfg, deps.Store, deps.Pool, deps.OAuth, deps.Logs, deps.Hub)

	r.GET("/health", healthHandler(deps.Pool))

	api := r.Group("/", middleware.APIKeyAuth(cfg.APIKey))
	api.POST("/v1/chat/completions", openaiHandler.ChatCompletions)
	api.GET("/v1/models", openaiHandler.ListModels)
	api.POST("/v1/messages", claudeHandler.Messages)
	api.POST("/v1/messages/count_tokens", claudeHandler.CountTokens)
	api.POST("/v1beta/models/:modelAction", geminiHandler.Dispatch)
	// Pins the request to one credential by project id instead of rotating.
	api.POST("/:credential/v1/chat/completions", openaiHandler.ChatCompletions)

	r.POST("/auth/login", loginHandler(cfg, deps.Sessions))
	r.POST("/auth/logout", logoutHandler(deps.Sessions))

	panel := r.Group("/", middleware.PanelAuth(deps.Sessions))
	panel.GET("/auth/accounts", mgmt.ListAccounts)
	panel.POST("/auth/accounts/import-toml", mgmt.ImportTOML)
	panel.POST("/auth/accounts/refresh-all", mgmt.RefreshAllAccounts)
	panel.POST("/auth/accounts/:index/refresh", mgmt.RefreshAccount)
	panel.POST("/auth/accounts/:index/enable", mgmt.SetAccountEnabled)
	panel.POST("/auth/accounts/:index/refresh-project-id", mgmt.RefreshAccountProjectID)
	panel.DELETE("/auth/accounts/disabled", mgmt.DeleteDisabledAccounts)
	panel.DELETE("/auth/accounts/:index", mgmt.DeleteAccount)
	panel.GET("/auth/oauth/url", mgmt.OAuthURL)
	panel.POST("/auth/oauth/parse-url", mgmt.OAuthParseURL)
	panel.GET("/admin/logs", mgmt.ListLogs)
	panel.GET("/admin/logs/usage", mgmt.LogUsage)
	panel.GET("/admin/logs/stream", mgmt.StreamLogs)
	panel.POST("/admin/logs/clear", mgmt.ClearLogs)
	panel.GET("/admin/logs/:id", mgmt.LogDetail)

	if cfg.ImageStorageMode == "local" && cfg.ImageLocalDir != "" {
		r.Static("/images", cfg.ImageLocalDir)
	}

	return r
}

func healthHandler(pool *credential.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": version.Version,
			"credentials": gin.H{
				"total":   pool.Size(),
				"enabled": pool.EnabledCount(),
			},
		})
	}
}

func loginHandler(cfg *config.Config, sessions *SessionStore) gin.HandlerFunc {
	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = constants.PanelSessionTTL
	}
	return func(c *gin.Context) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body must carry username and password"})
			return
		}
		if !config.CheckPanelUser(cfg, body.Username) || !config.CheckPanelPassword(cfg, body.Password) {
			log.WithField("ip", c.ClientIP()).Warn("panel login rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}

		token := sessions.Create()
		c.SetCookie(middleware.PanelSessionCookie, token, int(ttl.Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_in": int(ttl.Seconds()),
		})
	}
}

func logoutHandler(sessions *SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := middleware.PanelToken(c); token != "" {
			sessions.Delete(token)
		}
		c.SetCookie(middleware.PanelSessionCookie, "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"logged_out": true})
	}
}

// Server owns the HTTP listener lifecycle around the engine.
type Server struct {
	httpSrv *http.Server
}

func New(cfg *config.Config, deps Dependencies) *Server {
	return &Server{
		httpSrv: &http.Server{
			Addr:              cfg.Host + ":" + cfg.Port,
			Handler:           NewEngine(cfg, deps),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is canceled, then drains connections within the
// shutdown window.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.httpSrv.Addr).Info("http server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("forced server close after drain timeout")
		return s.httpSrv.Close()
	}
	return nil
}
