package middleware

import (
	"strconv" // Status code labels
	"time"    // Request timing

	"pharmacy_system/internal/metrics" // Prometheus collectors

	"github.com/gin-gonic/gin" // Gin web framework
)

// MetricsMiddleware records request latency by route template
func MetricsMiddleware(m *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now() // Start timer
		c.Next()            // Run the handler chain
		route := c.FullPath()
		if route == "" {
			route = "unmatched" // Keep label cardinality bounded
		}
		m.RequestLatency.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
