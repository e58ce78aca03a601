package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// PanelSessionCookie is the cookie the panel stores its session token in.
const PanelSessionCookie = "panel_session"

// SessionValidator reports whether a panel session token is live.
type SessionValidator interface {
	Validate(token string) bool
}

// PanelAuth gates the management surface behind a panel session. The token is
// accepted from Authorization: Bearer or the session cookie.
func PanelAuth(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractPanelToken(c)
		if token == "" || !sessions.Validate(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "panel session missing or expired",
			})
			return
		}
		c.Next()
	}
}

// PanelToken returns the session token the request carries, or "".
func PanelToken(c *gin.Context) string {
	return extractPanelToken(c)
}

func extractPanelToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			return strings.TrimSpace(auth[7:])
		}
	}
	if v, err := c.Cookie(PanelSessionCookie); err == nil {
		return v
	}
	return ""
}
