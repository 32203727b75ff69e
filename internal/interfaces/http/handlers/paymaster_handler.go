package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/interfaces/http/response"
	"nexuspay.backend/internal/usecases"
	"nexuspay.backend/pkg/utils"
)

// PaymasterHandler serves paymaster balance, funding and ledger routes
type PaymasterHandler struct {
	paymasterUsecase   *usecases.PaymasterUsecase
	transactionUsecase *usecases.TransactionUsecase
}

// NewPaymasterHandler creates a new paymaster handler
func NewPaymasterHandler(paymasterUsecase *usecases.PaymasterUsecase, transactionUsecase *usecases.TransactionUsecase) *PaymasterHandler {
	return &PaymasterHandler{paymasterUsecase: paymasterUsecase, transactionUsecase: transactionUsecase}
}

// Balance handles GET /v1/projects/:projectId/paymaster/balance.
// Returns the cached row with lastUpdated; ?refresh=true forces a throttled
// synchronous chain read.
func (h *PaymasterHandler) Balance(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	refresh := c.Query("refresh") == "true"
	balances, err := h.paymasterUsecase.GetBalances(c.Request.Context(), project.ID, refresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, balances)
}

// Addresses handles GET /v1/projects/:projectId/paymaster/addresses
func (h *PaymasterHandler) Addresses(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	paymasters, err := h.paymasterUsecase.List(c.Request.Context(), project.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	addresses := make([]gin.H, 0, len(paymasters))
	for _, pm := range paymasters {
		addresses = append(addresses, gin.H{
			"chain":   pm.Chain,
			"address": pm.Address,
		})
	}
	response.Success(c, http.StatusOK, addresses)
}

// Fund handles POST /v1/projects/:projectId/paymaster/fund
func (h *PaymasterHandler) Fund(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	var input entities.FundInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("chain and method are required").
			WithSuggestions("method must be deposit or card"))
		return
	}

	funding, err := h.paymasterUsecase.Fund(c.Request.Context(), project, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, funding)
}

// Ledger handles GET /v1/projects/:projectId/paymaster/transactions
func (h *PaymasterHandler) Ledger(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(queryInt(c, "page", 1), queryInt(c, "limit", utils.DefaultPageLimit))
	payments, total, err := h.paymasterUsecase.Ledger(c.Request.Context(), project.ID,
		entities.Chain(c.Query("chain")), params.Page, params.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, payments, utils.CalculateMeta(total, params.Page, params.Limit))
}

// Transactions handles GET /v1/projects/:projectId/transactions
func (h *PaymasterHandler) Transactions(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	from, to, err := queryTimeRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := entities.TransactionFilter{
		Chain:  entities.Chain(c.Query("chain")),
		Status: entities.TxStatus(c.Query("status")),
		From:   from,
		To:     to,
	}
	params := utils.GetPaginationParams(queryInt(c, "page", 1), queryInt(c, "limit", utils.DefaultPageLimit))
	logs, total, err := h.transactionUsecase.List(c.Request.Context(), project.ID, filter, params.Page, params.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, logs, utils.CalculateMeta(total, params.Page, params.Limit))
}

// Transaction handles GET /v1/projects/:projectId/transactions/:txId
func (h *PaymasterHandler) Transaction(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	log, err := h.transactionUsecase.Get(c.Request.Context(), project.ID, c.Param("txId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, log)
}
