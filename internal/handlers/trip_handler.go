package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gotyolo/booking-service/internal/models"
	"github.com/gotyolo/booking-service/internal/services"
)

// TripHandler handles trip inventory endpoints
type TripHandler struct {
	tripService *services.TripService
	logger      *logrus.Logger
}

// NewTripHandler creates a new TripHandler
func NewTripHandler(tripService *services.TripService, logger *logrus.Logger) *TripHandler {
	return &TripHandler{tripService: tripService, logger: logger}
}

// CreateTrip handles POST /api/v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trip, err := h.tripService.CreateTrip(&req)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

// ListTrips handles GET /api/v1/trips (published trips only)
func (h *TripHandler) ListTrips(c *gin.Context) {
	trips, err := h.tripService.ListPublishedTrips()
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

// GetTrip handles GET /api/v1/trips/:trip_id
func (h *TripHandler) GetTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("trip_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip id"})
		return
	}

	trip, err := h.tripService.GetTripDetails(tripID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}
