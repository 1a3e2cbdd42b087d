package handler

import (
	"log/slog"
	"time"

	"pawchat/backend/internal/config"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request once it completes. Requests slower than
// config.SlowRequestThreshold are logged at warn level.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", elapsed,
		}
		if user := CurrentUser(c); user != "" {
			attrs = append(attrs, "user_id", user)
		}
		switch {
		case c.IsWebsocket():
			logger.Debug("websocket closed", attrs...)
		case elapsed > config.SlowRequestThreshold:
			logger.Warn("slow request", attrs...)
		default:
			logger.Debug("request", attrs...)
		}
	}
}
