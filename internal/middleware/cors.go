package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// CORS answers preflight requests and sets the cross-origin headers for
// allowed origins. "*" allows every origin; with credentials the request
// origin is echoed since browsers reject a wildcard then.
func CORS(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	allowAll := slices.Contains(allowedOrigins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || slices.Contains(allowedOrigins, origin)) {
			h := c.Writer.Header()
			if allowAll && !allowCredentials {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			if allowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)

			if c.Request.Method == http.MethodOptions {
				method := c.GetHeader("Access-Control-Request-Method")
				if method == "" {
					method = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
				}
				h.Set("Access-Control-Allow-Methods", method)
				if headers := c.GetHeader("Access-Control-Request-Headers"); headers != "" {
					h.Set("Access-Control-Allow-Headers", headers)
				}
				h.Set("Access-Control-Max-Age", "600")
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
		}
		c.Next()
	}
}
