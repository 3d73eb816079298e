package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumen-edu/posgrad-api/internal/service"
	"github.com/lumen-edu/posgrad-api/pkg/response"
)

// MetricsHandler exposes runtime metrics.
type MetricsHandler struct {
	service *service.MetricsService
}

// NewMetricsHandler creates a new handler.
func NewMetricsHandler(svc *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{service: svc}
}

// Snapshot godoc
// @Summary System metrics snapshot
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/summary [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Snapshot(), nil)
}

// Prometheus returns the prometheus scrape handler.
func (h *MetricsHandler) Prometheus() gin.HandlerFunc {
	return gin.WrapH(h.service.Handler())
}
