package middleware

import (
	"strconv"
	"time"

	"github.com/arosnov/schedhook/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request latency and count, labeled by the matched
// route template rather than the raw path so cardinality stays
// bounded under path parameters like /targets/:id.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
