package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gotyolo/booking-service/internal/services"
)

// AdminHandler handles the admin reporting endpoints
type AdminHandler struct {
	tripService *services.TripService
	logger      *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(tripService *services.TripService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{tripService: tripService, logger: logger}
}

// GetTripMetrics handles GET /api/v1/admin/trips/:trip_id/metrics
func (h *AdminHandler) GetTripMetrics(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("trip_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip id"})
		return
	}

	metrics, err := h.tripService.GetTripMetrics(tripID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// ListAtRiskTrips handles GET /api/v1/admin/trips/at-risk
func (h *AdminHandler) ListAtRiskTrips(c *gin.Context) {
	report, err := h.tripService.GetAtRiskTrips()
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
