package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"defectmaster-backend/internal/shared/server/respond"
)

const userIDKey = "userId"

// Identity reads the platform user id forwarded by the messaging gateway.
// The gateway sits on a private network and has already authenticated the
// chat user, so the header is trusted as-is.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader("X-User-Id")); id != "" {
			c.Set(userIDKey, id)
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user id stored by Identity.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// AdminGuard rejects requests that do not carry the shared admin token. An
// empty configured token disables the admin surface entirely.
func AdminGuard(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token == "" {
			respond.Error(c, http.StatusForbidden, "forbidden", "admin surface is disabled", nil)
			return
		}
		if strings.TrimSpace(c.GetHeader("X-Admin-Token")) != token {
			respond.Error(c, http.StatusForbidden, "forbidden", "invalid admin token", nil)
			return
		}
		c.Next()
	}
}
