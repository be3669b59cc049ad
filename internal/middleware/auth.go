package middleware

import (
	"crypto/subtle"
	"log/slog"

	"localnotify/internal/common"

	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-API-Key"

// Auth returns middleware that validates the X-API-Key header against configured keys.
// With no keys configured the bridge is open, which only makes sense on a
// loopback listener.
func Auth(validKeys []string) gin.HandlerFunc {
	if len(validKeys) == 0 {
		slog.Warn("no API keys configured, notification bridge is unauthenticated")
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		apiKey := c.GetHeader(apiKeyHeader)
		if apiKey == "" {
			common.HandleError(c, common.NewUnauthorizedError("missing X-API-Key header"))
			c.Abort()
			return
		}

		if !isValidKey(apiKey, validKeys) {
			common.HandleError(c, common.NewUnauthorizedError("invalid API key"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// isValidKey checks the provided key against the list of valid keys using constant-time comparison.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
