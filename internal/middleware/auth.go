package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"karaoke-service/internal/identity"
)

// AuthMiddleware validates the Authorization bearer token and stores the caller's
// identity on the gin context and the request context.
func AuthMiddleware(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		me, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", me.UserID)
		c.Set("username", me.DisplayName)
		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), me))
		c.Next()
	}
}
