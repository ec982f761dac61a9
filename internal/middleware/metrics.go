package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records latency and status of every request under its route
// template, so report ids never become label values.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
