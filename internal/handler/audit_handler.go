package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumen-edu/posgrad-api/internal/models"
	"github.com/lumen-edu/posgrad-api/internal/service"
	"github.com/lumen-edu/posgrad-api/pkg/response"
)

// AuditHandler serves the audit trail listing.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler creates a new handler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit entries
// @Tags Audit
// @Produce json
// @Param entity query string false "Filter by entity"
// @Param action query string false "Filter by action"
// @Param user_id query string false "Filter by acting user"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		Entity:   c.Query("entity"),
		Action:   c.Query("action"),
		UserID:   c.Query("user_id"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	entries, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}
