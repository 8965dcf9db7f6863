package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gotyolo/booking-service/internal/models"
	"github.com/gotyolo/booking-service/internal/services"
)

// BookingHandler handles the booking lifecycle endpoints
type BookingHandler struct {
	reservations *services.ReservationService
	logger       *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(reservations *services.ReservationService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{reservations: reservations, logger: logger}
}

// CreateBooking handles POST /api/v1/trips/:trip_id/book
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("trip_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip id"})
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	booking, err := h.reservations.CreateBooking(tripID, &req)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// CancelBooking handles POST /api/v1/bookings/:booking_id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	booking, err := h.reservations.CancelBooking(bookingID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// GetBooking handles GET /api/v1/bookings/:booking_id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	booking, err := h.reservations.GetBooking(bookingID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
