package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/interfaces/http/middleware"
	"nexuspay.backend/internal/interfaces/http/response"
	"nexuspay.backend/internal/usecases"
)

// ProjectHandler serves project CRUD and membership routes. These are
// session-only: API keys are project-scoped credentials and cannot manage
// the projects that issued them.
type ProjectHandler struct {
	projectUsecase *usecases.ProjectUsecase
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projectUsecase *usecases.ProjectUsecase) *ProjectHandler {
	return &ProjectHandler{projectUsecase: projectUsecase}
}

func sessionUser(c *gin.Context) (*entities.User, bool) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized(domainerrors.CodeInvalidToken, "a session token is required for this route"))
		return nil, false
	}
	return user, true
}

// Create handles POST /v1/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	var input entities.CreateProjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("name and at least one chain are required").
			WithSuggestions("chains must be a subset of: ethereum, arbitrum, solana"))
		return
	}

	project, err := h.projectUsecase.Create(c.Request.Context(), user.ID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, project)
}

// List handles GET /v1/projects
func (h *ProjectHandler) List(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	projects, err := h.projectUsecase.List(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, projects)
}

// Get handles GET /v1/projects/:projectId
func (h *ProjectHandler) Get(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	project, err := h.projectUsecase.Get(c.Request.Context(), user.ID, c.Param("projectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// Update handles PUT /v1/projects/:projectId
func (h *ProjectHandler) Update(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	var input entities.UpdateProjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("invalid project update payload"))
		return
	}

	project, err := h.projectUsecase.Update(c.Request.Context(), user.ID, c.Param("projectId"), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// Delete handles DELETE /v1/projects/:projectId (soft delete)
func (h *ProjectHandler) Delete(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	if err := h.projectUsecase.Delete(c.Request.Context(), user.ID, c.Param("projectId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ListMembers handles GET /v1/projects/:projectId/members
func (h *ProjectHandler) ListMembers(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	members, err := h.projectUsecase.ListMembers(c.Request.Context(), user.ID, c.Param("projectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// InviteMember handles POST /v1/projects/:projectId/members
func (h *ProjectHandler) InviteMember(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	var input entities.InviteMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("email and role are required").
			WithSuggestions("role must be one of: admin, developer, viewer"))
		return
	}

	member, err := h.projectUsecase.InviteMember(c.Request.Context(), user.ID, c.Param("projectId"), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, member)
}

// RemoveMember handles DELETE /v1/projects/:projectId/members/:userId
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	err := h.projectUsecase.RemoveMember(c.Request.Context(), user.ID, c.Param("projectId"), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
