package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/livepoll/backend/internal/auth"
	"github.com/livepoll/backend/pkg/response"
)

const (
	// ContextRole is the key for the token role in gin context.
	ContextRole = "token_role"
	// ContextSessionID is the key for the unlocked session of a poll-access token.
	ContextSessionID = "token_session_id"
)

// JWT returns a middleware that validates the bearer token and sets its claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextRole, claims.Role)
		if claims.SessionID != "" {
			c.Set(ContextSessionID, claims.SessionID)
		}
		c.Next()
	}
}
