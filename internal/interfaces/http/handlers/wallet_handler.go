package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/interfaces/http/middleware"
	"nexuspay.backend/internal/interfaces/http/response"
	"nexuspay.backend/internal/usecases"
	"nexuspay.backend/pkg/utils"
)

// WalletHandler serves wallet creation, deployment and read routes
type WalletHandler struct {
	walletUsecase *usecases.WalletUsecase
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletUsecase *usecases.WalletUsecase) *WalletHandler {
	return &WalletHandler{walletUsecase: walletUsecase}
}

func requestProject(c *gin.Context) (*entities.Project, bool) {
	project, ok := middleware.GetProject(c)
	if !ok {
		response.Error(c, domainerrors.NotFound("project context missing"))
		return nil, false
	}
	return project, true
}

// Create handles POST /v1/projects/:projectId/wallets/create.
// Idempotent: repeating the same (socialId, socialType) returns the existing
// wallet and its counterfactual addresses.
func (h *WalletHandler) Create(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	var input entities.CreateWalletInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("socialId, socialType and chains are required").
			WithSuggestions("chains must be enabled on the project"))
		return
	}

	wallet, created, err := h.walletUsecase.Create(c.Request.Context(), project, &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Success(c, status, wallet)
}

// Deploy handles POST /v1/projects/:projectId/wallets/deploy
func (h *WalletHandler) Deploy(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	var input entities.DeployWalletInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("walletId and chains are required"))
		return
	}

	results, err := h.walletUsecase.Deploy(c.Request.Context(), project, input.WalletID, input.Chains)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"walletId": input.WalletID, "deployments": results})
}

// Get handles GET /v1/projects/:projectId/wallets/:walletId.
// Counterfactual addresses are returned even when undeployed.
func (h *WalletHandler) Get(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	wallet, err := h.walletUsecase.Get(c.Request.Context(), project.ID, c.Param("walletId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, wallet)
}

// List handles GET /v1/projects/:projectId/wallets
func (h *WalletHandler) List(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(queryInt(c, "page", 1), queryInt(c, "limit", utils.DefaultPageLimit))
	wallets, total, err := h.walletUsecase.List(c.Request.Context(), project.ID, params.Page, params.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, wallets, utils.CalculateMeta(total, params.Page, params.Limit))
}
