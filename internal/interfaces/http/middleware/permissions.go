package middleware

import (
	"github.com/gin-gonic/gin"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/interfaces/http/response"
)

// RequirePermission gates a handler on a declared permission. API-key
// requests check the key's permission set; session requests check the user's
// project role; dev sentinel keys carry every permission.
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsDevKey(c) {
			c.Next()
			return
		}

		if key, ok := GetAPIKey(c); ok {
			if !key.HasPermission(perm) {
				response.AbortError(c, domainerrors.Forbidden(domainerrors.CodeInsufficientPermissions,
					"API key lacks the "+perm+" permission"))
				return
			}
			c.Next()
			return
		}

		if role, ok := GetProjectRole(c); ok {
			if !role.CanPerform(perm) {
				response.AbortError(c, domainerrors.Forbidden(domainerrors.CodeInsufficientPermissions,
					"your role does not allow "+perm))
				return
			}
			c.Next()
			return
		}

		response.AbortError(c, domainerrors.Forbidden(domainerrors.CodeInsufficientPermissions, "no permission context"))
	}
}
