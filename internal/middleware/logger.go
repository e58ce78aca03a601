package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"antigravity2api-go/internal/logging"
	"antigravity2api-go/internal/netutil"
)

// RequestLogger logs one line per terminated HTTP request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logging.WithReq(c, log.Fields{
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         netutil.ExtractIPFromRequest(c.Request),
			"user_agent": c.Request.UserAgent(),
		}).Info("http_request")
	}
}
