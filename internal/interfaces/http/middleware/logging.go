// Package middleware holds the gin middleware shared by the API server.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
)

// skipPaths are high-frequency probe paths excluded from request logging.
var skipPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

const slowRequestThreshold = 3 * time.Second

// RequestLogging logs one line per request with method, path, status, and
// latency. Slow requests and server errors are raised to Warn and Error.
func RequestLogging(logger logging.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", elapsed),
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Error("request failed", fields...)
		case c.Writer.Status() >= 400 || elapsed > slowRequestThreshold:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}
