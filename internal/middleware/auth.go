package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"careconnect-backend/internal/domain"
	"careconnect-backend/pkg/jwt"
	"careconnect-backend/pkg/response"
)

// AuthMiddleware creates a Gin middleware that validates JWT tokens issued by
// the records system's auth service. On success it sets user_id, username,
// and role in the Gin context; identity is never read from anywhere else.
func AuthMiddleware(jwtManager *jwt.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(parts[1])
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", domain.Role(claims.Role))
		c.Next()
	}
}
