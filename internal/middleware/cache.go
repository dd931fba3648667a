package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore marks every response as uncacheable. Responses carry patient data,
// so neither browsers nor shared caches may keep them.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "private, no-store")
		c.Header("Pragma", "no-cache")
		c.Header("Vary", "Authorization")
		c.Next()
	}
}
