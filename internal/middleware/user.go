package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserHeader carries the opaque caller identity. Authentication proper is
// out of scope; ownership scoping still needs an identifier.
const UserHeader = "X-User-Id"

// RequireUser extracts the X-User-Id header into the request context and
// rejects requests without one
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "X-User-Id header required",
			})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
