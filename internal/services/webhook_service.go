package services

import (
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gotyolo/booking-service/internal/database"
	"github.com/gotyolo/booking-service/internal/models"
)

// WebhookService reconciles payment provider notifications into booking
// state transitions.
//
// The contract with the provider is ack-always: ProcessWebhook never returns
// an error to its caller, it only logs. Providers retry until they see 200,
// and because every write here is a compare-and-set guarded on
// state = PENDING_PAYMENT and idempotency_key IS NULL, redelivery is safe.
type WebhookService struct {
	bookings *database.BookingRepository
	logger   *logrus.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(bookings *database.BookingRepository, logger *logrus.Logger) *WebhookService {
	return &WebhookService{bookings: bookings, logger: logger}
}

// ProcessWebhook applies a payment notification to its booking. Malformed
// payloads, unknown bookings, stale deliveries, and lost races are all
// ignored after logging.
func (s *WebhookService) ProcessWebhook(req *models.WebhookRequest) {
	if req == nil {
		s.logger.Warn("Webhook ignored: empty payload")
		return
	}

	log := s.logger.WithFields(logrus.Fields{
		"booking_id":      req.BookingID,
		"status":          req.Status,
		"idempotency_key": req.IdempotencyKey,
	})

	if strings.TrimSpace(req.BookingID) == "" || strings.TrimSpace(req.IdempotencyKey) == "" {
		log.Warn("Webhook ignored: missing booking_id or idempotency_key")
		return
	}

	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		log.Warn("Webhook ignored: malformed booking_id")
		return
	}

	// Duplicate delivery: this key was already applied to some booking.
	seen, err := s.bookings.ExistsByIdempotencyKey(req.IdempotencyKey)
	if err != nil {
		log.WithError(err).Error("Webhook idempotency check failed")
		return
	}
	if seen {
		log.Info("Webhook ignored: duplicate idempotency key")
		return
	}

	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		log.WithError(err).Error("Webhook booking lookup failed")
		return
	}
	if booking == nil {
		log.Warn("Webhook ignored: booking not found")
		return
	}
	if booking.State != models.BookingStatePendingPayment {
		log.WithField("state", booking.State).Info("Webhook ignored: booking not awaiting payment")
		return
	}

	if strings.EqualFold(req.Status, "success") {
		applied, err := s.bookings.ConfirmPendingPayment(booking.ID, req.IdempotencyKey)
		if err != nil {
			log.WithError(err).Error("Failed to confirm booking from webhook")
			return
		}
		if !applied {
			log.Info("Webhook confirm skipped: booking transitioned concurrently")
			return
		}
		log.Info("Booking confirmed via webhook")
		return
	}

	// Failed payment: expire the booking and return its seats.
	applied, err := s.bookings.FailPendingPayment(models.ExpiredBookingInfo{
		BookingID: booking.ID,
		TripID:    booking.TripID,
		NumSeats:  booking.NumSeats,
	}, req.IdempotencyKey)
	if err != nil {
		log.WithError(err).Error("Failed to expire booking from webhook")
		return
	}
	if !applied {
		log.Info("Webhook expire skipped: booking transitioned concurrently")
		return
	}
	log.Info("Booking expired via webhook, seats released")
}
