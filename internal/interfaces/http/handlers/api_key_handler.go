package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/internal/interfaces/http/response"
	"nexuspay.backend/internal/usecases"
	"nexuspay.backend/pkg/utils"
)

// APIKeyHandler serves API key management routes (session-only)
type APIKeyHandler struct {
	apiKeyUsecase *usecases.APIKeyUsecase
	usageRepo     repositories.APIKeyUsageRepository
}

// NewAPIKeyHandler creates a new API key handler
func NewAPIKeyHandler(apiKeyUsecase *usecases.APIKeyUsecase, usageRepo repositories.APIKeyUsageRepository) *APIKeyHandler {
	return &APIKeyHandler{apiKeyUsecase: apiKeyUsecase, usageRepo: usageRepo}
}

// Create handles POST /v1/projects/:projectId/api-keys.
// The plaintext key appears in this response and never again.
func (h *APIKeyHandler) Create(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	var input entities.CreateAPIKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("name and type are required").
			WithSuggestions("type must be one of: dev, production, restricted"))
		return
	}

	created, err := h.apiKeyUsecase.Create(c.Request.Context(), user.ID, c.Param("projectId"), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, created)
}

// List handles GET /v1/projects/:projectId/api-keys
func (h *APIKeyHandler) List(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	keys, err := h.apiKeyUsecase.List(c.Request.Context(), user.ID, c.Param("projectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, keys)
}

// UpdateAllowlist handles PUT /v1/projects/:projectId/api-keys/:keyId
func (h *APIKeyHandler) UpdateAllowlist(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	var input entities.UpdateIPAllowlistInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("invalid allowlist payload").
			WithSuggestions("add entries as {ip: \"203.0.113.5\"} or CIDR {ip: \"10.0.0.0/24\"}"))
		return
	}

	key, err := h.apiKeyUsecase.UpdateIPAllowlist(c.Request.Context(), user.ID, c.Param("projectId"), c.Param("keyId"), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, key)
}

// Rotate handles POST /v1/projects/:projectId/api-keys/:keyId/rotate
func (h *APIKeyHandler) Rotate(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	rotated, err := h.apiKeyUsecase.Rotate(c.Request.Context(), user.ID, c.Param("projectId"), c.Param("keyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rotated)
}

// Revoke handles DELETE /v1/projects/:projectId/api-keys/:keyId
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	if err := h.apiKeyUsecase.Revoke(c.Request.Context(), user.ID, c.Param("projectId"), c.Param("keyId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// Usage handles GET /v1/projects/:projectId/api-keys/:keyId/usage
func (h *APIKeyHandler) Usage(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	// Listing keys performs the membership check; a caller who cannot read
	// the project cannot read usage either.
	if _, err := h.apiKeyUsecase.List(c.Request.Context(), user.ID, c.Param("projectId")); err != nil {
		response.Error(c, err)
		return
	}

	params := utils.GetPaginationParams(queryInt(c, "page", 1), queryInt(c, "limit", utils.DefaultPageLimit))
	rows, total, err := h.usageRepo.ListByKey(c.Request.Context(), c.Param("keyId"), params.Limit, params.CalculateOffset())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, rows, utils.CalculateMeta(total, params.Page, params.Limit))
}
