package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/mlapi/pkg/log"
)

// Logging writes one structured access log record per request. Server
// errors are logged at error level with the errors attached to the gin
// context, client errors at warn level.
func Logging(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			log.RequestIDKey, GetRequestID(c),
			log.MethodKey, c.Request.Method,
			log.PathKey, c.Request.URL.Path,
			log.StatusKey, status,
			log.ClientIPKey, c.ClientIP(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		}

		switch {
		case status >= http.StatusInternalServerError:
			if err := c.Errors.Last(); err != nil {
				fields = append([]any{err.Err}, fields...)
			}
			logger.Error("Request failed", fields...)
		case status >= http.StatusBadRequest:
			if err := c.Errors.Last(); err != nil {
				fields = append(fields, "error", err.Error())
			}
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request completed", fields...)
		}
	}
}
