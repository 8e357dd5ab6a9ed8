package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"refunds-backend/internal/shared/response"
	"refunds-backend/pkg/jwt"
)

const (
	ContextClaims         = "claims"
	ContextMerchantID     = "merchant_id"
	ContextAuthorityLevel = "authority_level"
)

// Auth validates the bearer token and stores claims on the context.
func Auth(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized(c, "Missing or malformed Authorization header")
			c.Abort()
			return
		}

		claims, err := manager.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextMerchantID, claims.MerchantID)
		c.Set(ContextAuthorityLevel, claims.AuthorityLevel)
		c.Next()
	}
}

// RequireRole gates a route to one or more roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.Get(ContextClaims)
		if !ok {
			response.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		role := claims.(*jwt.Claims).Role
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, "Insufficient role")
		c.Abort()
	}
}
