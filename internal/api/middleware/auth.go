package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Authorized checks the shared registry key against the X-Api-Key header
// or a Bearer token. An empty configured key means the registry is open.
func Authorized(c *gin.Context, registryKey string) bool {
	if registryKey == "" {
		return true
	}
	if c.GetHeader("X-Api-Key") == registryKey {
		return true
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ") == registryKey
	}
	return false
}

// RequireKey guards mutating registry endpoints with the shared key.
func RequireKey(registryKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Authorized(c, registryKey) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
