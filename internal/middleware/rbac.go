package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edt-scheduler/internal/models"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
	"github.com/noah-isme/edt-scheduler/pkg/response"
)

// RBAC enforces role-based access control for routes. Admins pass every gate.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed)+1)
	for _, a := range allowed {
		allowedRoles[models.UserRole(a)] = struct{}{}
	}
	allowedRoles[models.RoleAdmin] = struct{}{}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
