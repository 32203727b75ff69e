package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"nexuspay.backend/internal/interfaces/http/response"
	"nexuspay.backend/internal/usecases"
)

// AnalyticsHandler serves the read-only analytics routes
type AnalyticsHandler struct {
	analyticsUsecase *usecases.AnalyticsUsecase
	paymasterUsecase *usecases.PaymasterUsecase
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsUsecase *usecases.AnalyticsUsecase, paymasterUsecase *usecases.PaymasterUsecase) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsUsecase: analyticsUsecase, paymasterUsecase: paymasterUsecase}
}

// Overview handles GET /v1/projects/:projectId/analytics/overview?days=30
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	overview, err := h.analyticsUsecase.Overview(c.Request.Context(), project.ID, queryInt(c, "days", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, overview)
}

// Transactions handles GET /v1/projects/:projectId/analytics/transactions.
// Returns per-(date, chain) daily metrics over the requested window.
func (h *AnalyticsHandler) Transactions(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	from, to, err := queryTimeRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	daily, err := h.analyticsUsecase.Daily(c.Request.Context(), project.ID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, daily)
}

// Users handles GET /v1/projects/:projectId/analytics/users.
// Combines the top-user leaderboard with retention cohorts; a
// userIdentifier query narrows to one user's activity and engagement score.
func (h *AnalyticsHandler) Users(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if userIdentifier := c.Query("userIdentifier"); userIdentifier != "" {
		activity, err := h.analyticsUsecase.Engagement(ctx, project.ID, userIdentifier)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, activity)
		return
	}

	topUsers, err := h.analyticsUsecase.TopUsers(ctx, project.ID, c.Query("orderBy"), queryInt(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	cohorts, err := h.analyticsUsecase.Cohorts(ctx, project.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"topUsers": topUsers, "cohorts": cohorts})
}

// Costs handles GET /v1/projects/:projectId/analytics/costs
func (h *AnalyticsHandler) Costs(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	from, to, err := queryTimeRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	costs, err := h.paymasterUsecase.CostReport(c.Request.Context(), project.ID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, costs)
}

// Export handles GET /v1/projects/:projectId/analytics/export.
// Streams the billing window as CSV.
func (h *AnalyticsHandler) Export(c *gin.Context) {
	project, ok := requestProject(c)
	if !ok {
		return
	}

	from, to, err := queryTimeRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	csv, err := h.analyticsUsecase.ExportCSV(c.Request.Context(), project.ID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("%s-transactions-%s.csv", project.Slug, time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", csv)
}
