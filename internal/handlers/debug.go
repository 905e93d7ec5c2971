package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"karaoke-service/internal/telemetry"
)

const debugTokenTTL = 12 * time.Hour

// TokenSigner issues bearer tokens for local testing.
type TokenSigner interface {
	Sign(userID, name, email string, ttl time.Duration) (string, error)
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, signer TokenSigner, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/token", func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" || signer == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}
		token, err := signer.Sign(userID, c.Query("name"), c.Query("email"), debugTokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})
}
