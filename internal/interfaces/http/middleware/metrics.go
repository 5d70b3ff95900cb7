package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/propbill/backend/internal/infrastructure/metrics"
)

// HTTPMetrics records request counts, latency and in-flight requests. A nil
// m yields a pass-through middleware.
func HTTPMetrics(m *metrics.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPRequestStarted()

		c.Next()

		m.ObserveHTTPRequest(c.Request.Method, routePattern(c), c.Writer.Status(), time.Since(start))
	}
}

// routePattern returns the matched route, e.g. /api/v1/bills/:id, so that
// bill IDs never become label values
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
