package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/internal/interfaces/http/response"
	"nexuspay.backend/internal/usecases"
	"nexuspay.backend/pkg/jwt"
	"nexuspay.backend/pkg/logger"
)

// devSentinels are in-process keys that bypass lookup outside production and
// grant full permissions.
var devSentinels = map[string]struct{}{
	"local-dev-key":   {},
	"dev-key":         {},
	"development-key": {},
}

// ProjectAuth authenticates project-scoped routes with exactly one of a
// Bearer session or a project API key, and resolves the project context.
type ProjectAuth struct {
	jwtService  *jwt.JWTService
	userRepo    repositories.UserRepository
	projectRepo repositories.ProjectRepository
	apiKeys     *usecases.APIKeyUsecase
	projects    *usecases.ProjectUsecase
	production  bool
}

// NewProjectAuth creates the project-route authenticator
func NewProjectAuth(
	jwtService *jwt.JWTService,
	userRepo repositories.UserRepository,
	projectRepo repositories.ProjectRepository,
	apiKeys *usecases.APIKeyUsecase,
	projects *usecases.ProjectUsecase,
	production bool,
) *ProjectAuth {
	return &ProjectAuth{
		jwtService:  jwtService,
		userRepo:    userRepo,
		projectRepo: projectRepo,
		apiKeys:     apiKeys,
		projects:    projects,
		production:  production,
	}
}

// Handler returns the middleware. Exactly one authenticator must succeed:
// an X-API-Key header (or apikey query parameter) wins over a Bearer token.
func (a *ProjectAuth) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(APIKeyHeader)
		if presented == "" {
			presented = c.Query(APIKeyQueryParam)
		}

		if presented != "" {
			a.apiKeyPath(c, presented)
			return
		}
		a.sessionPath(c)
	}
}

func (a *ProjectAuth) apiKeyPath(c *gin.Context, presented string) {
	ctx := c.Request.Context()
	paramProject := c.Param("projectId")

	if _, ok := devSentinels[presented]; ok {
		if a.production {
			response.AbortError(c, domainerrors.Unauthorized(domainerrors.CodeInvalidAPIKey, "unknown API key"))
			return
		}
		project, err := a.resolveActiveProject(c, paramProject)
		if err != nil {
			response.AbortError(c, err)
			return
		}
		logger.Debug(ctx, "dev sentinel key accepted", zap.String("project_id", project.ID))
		c.Set(DevKeyKey, true)
		c.Set(ProjectKey, project)
		c.Next()
		return
	}

	key, project, err := a.apiKeys.AuthenticateRequest(ctx, presented, c.ClientIP())
	if err != nil {
		response.AbortError(c, err)
		return
	}
	if paramProject != "" && paramProject != project.ID {
		response.AbortError(c, domainerrors.Forbidden(domainerrors.CodeProjectMismatch, "key does not belong to this project"))
		return
	}

	c.Set(APIKeyKey, key)
	c.Set(ProjectKey, project)
	c.Next()
}

func (a *ProjectAuth) sessionPath(c *gin.Context) {
	authHeader := c.GetHeader(AuthorizationHeader)
	if !strings.HasPrefix(authHeader, BearerPrefix) {
		response.AbortError(c, domainerrors.Unauthorized(domainerrors.CodeInvalidToken, "authentication required (Bearer token or API key)"))
		return
	}

	claims, err := a.jwtService.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
	if err != nil {
		if err == jwt.ErrExpiredToken {
			response.AbortError(c, domainerrors.Unauthorized(domainerrors.CodeTokenExpired, "token has expired"))
			return
		}
		response.AbortError(c, domainerrors.Unauthorized(domainerrors.CodeInvalidToken, "invalid token"))
		return
	}

	ctx := c.Request.Context()
	user, err := a.userRepo.GetByID(ctx, claims.UserID)
	if err != nil || user.Status != entities.UserStatusActive {
		response.AbortError(c, domainerrors.Unauthorized(domainerrors.CodeInvalidToken, "account is not active"))
		return
	}
	c.Set(UserKey, user)

	if paramProject := c.Param("projectId"); paramProject != "" {
		project, err := a.resolveActiveProject(c, paramProject)
		if err != nil {
			response.AbortError(c, err)
			return
		}
		role, err := a.projects.RoleOf(ctx, project, user.ID)
		if err != nil {
			response.AbortError(c, err)
			return
		}
		c.Set(ProjectKey, project)
		c.Set(ProjectRoleKey, role)
	}

	c.Next()
}

func (a *ProjectAuth) resolveActiveProject(c *gin.Context, projectID string) (*entities.Project, error) {
	if projectID == "" {
		return nil, domainerrors.BadRequest("projectId is required").WithField("projectId")
	}
	project, err := a.projectRepo.GetByID(c.Request.Context(), projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != entities.ProjectStatusActive {
		return nil, domainerrors.NotFound("project is not active")
	}
	return project, nil
}
