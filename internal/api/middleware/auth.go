package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"transcribot/internal/api/errors"
)

// BearerAuth admits requests carrying "Authorization: Bearer <token>".
// An empty token locks the route entirely.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if token == "" || !ok ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(token)) != 1 {
			HandleError(c, errors.NewUnauthorizedError("Invalid or missing bearer token"))
			return
		}
		c.Next()
	}
}
