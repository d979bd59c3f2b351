package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	prommetrics "github.com/vantagelab/termlens/internal/infrastructure/monitoring/prometheus"
)

// Metrics observes request counts and latency. The route template (not the
// raw path) labels the series, keeping cardinality bounded.
func Metrics(m *prommetrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
