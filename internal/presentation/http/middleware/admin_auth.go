package middleware

import (
	"net/http"
	"strings"

	"github.com/AtRiskMedia/chatline-go/internal/application/services"
	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware guards the operator console API. It accepts either the
// shared operator token or a console JWT in the Authorization header.
func AdminAuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !authService.ValidOperatorCredential(token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
