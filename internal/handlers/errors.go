package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gotyolo/booking-service/internal/services"
)

// respondServiceError maps service errors onto HTTP status codes. Anything
// unrecognized is logged with context and surfaced as a generic 500.
func respondServiceError(c *gin.Context, logger *logrus.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrTripNotFound),
		errors.Is(err, services.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrTripNotBookable),
		errors.Is(err, services.ErrInsufficientSeats),
		errors.Is(err, services.ErrAlreadyFinalized):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("Unhandled service error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
