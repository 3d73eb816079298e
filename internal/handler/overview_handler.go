package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumen-edu/posgrad-api/internal/models"
	appErrors "github.com/lumen-edu/posgrad-api/pkg/errors"
	"github.com/lumen-edu/posgrad-api/pkg/response"
)

type overviewService interface {
	AdminStats(ctx context.Context) (*models.OverviewStats, error)
	CoordinatorOverview(ctx context.Context, coordinatorID string) (*models.CoordinatorOverview, error)
}

// OverviewHandler serves the dashboard endpoints.
type OverviewHandler struct {
	service overviewService
}

// NewOverviewHandler creates a new handler.
func NewOverviewHandler(svc overviewService) *OverviewHandler {
	return &OverviewHandler{service: svc}
}

// Overview godoc
// @Summary Dashboard overview
// @Description Administrators get system-wide stats, coordinators get their own courses
// @Tags Overview
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /overview [get]
func (h *OverviewHandler) Overview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if claims.Role == models.RoleAdministrador {
		stats, err := h.service.AdminStats(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, stats, nil)
		return
	}

	overview, err := h.service.CoordinatorOverview(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}
