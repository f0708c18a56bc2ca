package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS allows requests from origin, or from any origin when origin is "*".
// Preflight requests are answered without reaching the routes.
func CORS(origin string) gin.HandlerFunc {
	allowAll := origin == "*"

	return func(c *gin.Context) {
		reqOrigin := c.GetHeader("Origin")

		if reqOrigin != "" && (allowAll || reqOrigin == origin) {
			c.Header("Access-Control-Allow-Origin", reqOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, auth-token, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "auth-token, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions && reqOrigin != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
