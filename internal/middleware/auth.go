package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Ranaran315/campus-backend-sub000/internal/token"
)

const identityContextKey = "identity"

// AuthMiddleware validates the Authorization header and stores the verified
// identity on the request context.
func AuthMiddleware(verifier *token.Verifier) gin.HandlerFunc {
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

		identity, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(identityContextKey, identity)
		c.Set("userID", identity.UserID)
		c.Next()
	}
}

// RequirePermission gates a route on a permission from the verified identity.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok || !identity.Has(permission) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing permission"})
			return
		}
		c.Next()
	}
}

// IdentityFromContext returns the identity stored by AuthMiddleware.
func IdentityFromContext(c *gin.Context) (token.Identity, bool) {
	val, ok := c.Get(identityContextKey)
	if !ok {
		return token.Identity{}, false
	}
	identity, ok := val.(token.Identity)
	return identity, ok
}

// UserID returns the authenticated user id, or "" when unauthenticated.
func UserID(c *gin.Context) string {
	return c.GetString("userID")
}
