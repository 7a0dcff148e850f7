package middleware

import (
	"strings"

	"botdeck/backend/internal/service"
	"botdeck/backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the session token into a principal.
// Browsers cannot set headers on a WebSocket handshake, so ?token= is accepted as a fallback.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			util.AbortWithCustomError(c, 401, util.ErrCodeUnauthorized, "Missing authorization header")
			return
		}

		p, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			util.AbortWithError(c, err)
			return
		}

		// Set principal in context
		c.Set(service.PrincipalKey, p)
		c.Set("user_id", p.UserID)
		c.Set("username", p.Username)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if t := c.Query("token"); t != "" {
			return t, true
		}
		return "", false
	}

	// Check if Bearer token
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
