package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bff-service/internal/metrics"
)

// Metrics records request count, latency and in-flight requests per route
// template, so path parameters do not explode label cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.RequestStarted()
		start := time.Now()

		defer func() {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}

			if rec := recover(); rec != nil {
				m.RequestFinished(c.Request.Method, route, http.StatusInternalServerError, time.Since(start))
				panic(rec)
			}
			m.RequestFinished(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		}()

		c.Next()
	}
}
