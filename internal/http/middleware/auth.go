// README: Firebase ID-token auth middleware; resolves identity only, no authorization rules.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fieldops/internal/infra"
)

// UIDKey is the gin context key holding the verified caller uid.
const UIDKey = "auth_uid"

func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(UIDKey, token.UID)
		c.Next()
	}
}
