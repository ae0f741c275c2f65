package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/mlapi/internal/telemetry"
)

// Metrics records request counts and latencies labelled by route pattern.
func Metrics(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := m.RequestStarted()
		defer done()

		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
