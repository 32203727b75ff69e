package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/internal/interfaces/http/response"
	"nexuspay.backend/pkg/jwt"
)

const (
	// AuthorizationHeader is the header key for bearer sessions
	AuthorizationHeader = "Authorization"
	// APIKeyHeader is the header key for project API keys
	APIKeyHeader = "X-API-Key"
	// APIKeyQueryParam is the fallback query parameter for project API keys
	APIKeyQueryParam = "apikey"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "

	// UserKey is the context key for the authenticated session user
	UserKey = "authUser"
	// APIKeyKey is the context key for the authenticated API key
	APIKeyKey = "authApiKey"
	// ProjectKey is the context key for the resolved project
	ProjectKey = "authProject"
	// ProjectRoleKey is the context key for the session user's project role
	ProjectRoleKey = "authProjectRole"
	// DevKeyKey marks requests authenticated with an in-process dev sentinel
	DevKeyKey = "authDevKey"
)

// SessionAuthMiddleware authenticates a Bearer session JWT and attaches the
// user. Rejects suspended or deleted subjects.
func SessionAuthMiddleware(jwtService *jwt.JWTService, userRepo repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			response.AbortError(c, domainerrors.Unauthorized(domainerrors.CodeInvalidToken, "authorization header is required"))
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.AbortError(c, domainerrors.Unauthorized(domainerrors.CodeInvalidToken, "invalid authorization format, use: Bearer <token>"))
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			if err == jwt.ErrExpiredToken {
				response.AbortError(c, domainerrors.Unauthorized(domainerrors.CodeTokenExpired, "token has expired"))
				return
			}
			response.AbortError(c, domainerrors.Unauthorized(domainerrors.CodeInvalidToken, "invalid token"))
			return
		}

		user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil || user.Status != entities.UserStatusActive {
			response.AbortError(c, domainerrors.Unauthorized(domainerrors.CodeInvalidToken, "account is not active"))
			return
		}

		c.Set(UserKey, user)
		c.Next()
	}
}

// GetUser returns the session user from context
func GetUser(c *gin.Context) (*entities.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*entities.User)
	return user, ok
}

// GetAPIKey returns the authenticated API key from context
func GetAPIKey(c *gin.Context) (*entities.APIKey, bool) {
	v, ok := c.Get(APIKeyKey)
	if !ok {
		return nil, false
	}
	key, ok := v.(*entities.APIKey)
	return key, ok
}

// GetProject returns the resolved project from context
func GetProject(c *gin.Context) (*entities.Project, bool) {
	v, ok := c.Get(ProjectKey)
	if !ok {
		return nil, false
	}
	project, ok := v.(*entities.Project)
	return project, ok
}

// GetProjectRole returns the session user's role within the resolved project
func GetProjectRole(c *gin.Context) (entities.ProjectRole, bool) {
	v, ok := c.Get(ProjectRoleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(entities.ProjectRole)
	return role, ok
}

// IsDevKey reports whether the request used an in-process dev sentinel key
func IsDevKey(c *gin.Context) bool {
	return c.GetBool(DevKeyKey)
}
