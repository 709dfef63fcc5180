package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyToken is the Gin context key for the forwarded bearer token.
const ContextKeyToken = "bearer_token"

// CaptureBearerToken stashes the Authorization bearer token in the
// context. The agent never validates the credential itself — it is
// forwarded verbatim to the exam service, which owns authentication.
// Handlers that need the token enforce its presence.
func CaptureBearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				c.Set(ContextKeyToken, parts[1])
			}
		}
		c.Next()
	}
}

// GetToken retrieves the forwarded bearer token from the Gin context.
func GetToken(c *gin.Context) string {
	val, exists := c.Get(ContextKeyToken)
	if !exists {
		return ""
	}
	token, _ := val.(string)
	return token
}
