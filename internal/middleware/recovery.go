package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
	"github.com/YuminosukeSato/mlapi/pkg/log"
)

// Recovery turns a panic in a later handler into a 500 response and logs
// it with its stack.
func Recovery(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				perr := errors.NewPanicError(c.Request.Method+" "+c.FullPath(), r)
				logger.Error("Panic recovered", errors.WithStack(perr),
					log.RequestIDKey, GetRequestID(c),
					"stack", perr.StackTrace,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"detail": "Internal Server Error",
				})
			}
		}()
		c.Next()
	}
}
