package management

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	apperrors "antigravity2api-go/internal/errors"
	"antigravity2api-go/internal/handlers/common"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Panel and API share an origin; the session gate already ran.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ListLogs serves GET /admin/logs?limit=N, newest first, details stripped.
func (h *Handler) ListLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	c.JSON(http.StatusOK, gin.H{"logs": h.logs.RecentLogs(limit)})
}

// LogDetail serves GET /admin/logs/:id with the full stored entry.
func (h *Handler) LogDetail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		common.RespondError(c, apperrors.BadRequest("id must be an integer"))
		return
	}
	entry, ok := h.logs.GetDetail(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "log entry not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ClearLogs serves POST /admin/logs/clear.
func (h *Handler) ClearLogs(c *gin.Context) {
	h.logs.Clear(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// LogUsage serves GET /admin/logs/usage?minutes=N: per-project counts in the
// trailing window plus the all-time summary.
func (h *Handler) LogUsage(c *gin.Context) {
	minutes, _ := strconv.Atoi(c.DefaultQuery("minutes", "60"))
	if minutes <= 0 {
		minutes = 60
	}
	c.JSON(http.StatusOK, gin.H{
		"window_minutes": minutes,
		"window":         h.logs.UsageWithinWindow(time.Duration(minutes) * time.Minute),
		"summary":        h.logs.UsageSummary(),
		"hourly_limit":   h.pool.HourlyLimit(),
	})
}

// StreamLogs serves GET /admin/logs/stream: a websocket tail of the live log
// feed, replaying the buffered history past the optional cursor first.
func (h *Handler) StreamLogs(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Debug("log stream upgrade failed")
		return
	}

	cursor, _ := strconv.ParseUint(c.Query("cursor"), 10, 64)
	for _, entry := range h.hub.TailSince(cursor) {
		if err := conn.WriteJSON(entry); err != nil {
			conn.Close()
			return
		}
	}
	if !h.hub.Attach(conn) {
		conn.WriteJSON(gin.H{"error": "too many log watchers"})
		conn.Close()
		return
	}

	// Reader loop: keeps the idle clock fresh and notices disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.hub.Detach(conn)
				return
			}
			h.hub.Touch(conn)
		}
	}()
}
