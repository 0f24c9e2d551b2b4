package middlewares

import (
	"net/http"
	"strings"

	"backend/config"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the origins listed in CORS_ORIGINS (comma-sep);
// "*" allows everything, which is the dev default.
func CORSMiddleware() gin.HandlerFunc {
	allowed := config.App.CORSOrigins

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(origin, allowed) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
