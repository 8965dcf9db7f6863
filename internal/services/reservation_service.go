package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/gotyolo/booking-service/internal/database"
	"github.com/gotyolo/booking-service/internal/models"
)

// ReservationConfig holds the booking lifecycle knobs for the engine
type ReservationConfig struct {
	ExpiryWindow time.Duration // how long seats stay held awaiting payment
}

// DefaultReservationConfig returns default configuration
func DefaultReservationConfig() ReservationConfig {
	return ReservationConfig{
		ExpiryWindow: 15 * time.Minute,
	}
}

// ReservationService is the seat reservation engine: it owns booking
// creation and cancellation, including the refund policy. All seat-counter
// mutations it triggers happen inside single-transaction repository calls.
type ReservationService struct {
	trips    *database.TripRepository
	bookings *database.BookingRepository
	config   ReservationConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	trips *database.TripRepository,
	bookings *database.BookingRepository,
	config ReservationConfig,
	logger *logrus.Logger,
) *ReservationService {
	return &ReservationService{
		trips:    trips,
		bookings: bookings,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateBooking reserves numSeats on a trip for a user. On success the
// booking is PENDING_PAYMENT with the price locked and the seats held; the
// hold is backed by a conditional decrement, so concurrent requests against
// the same trip cannot oversell.
func (s *ReservationService) CreateBooking(tripID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error) {
	if req == nil || strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if req.NumSeats < 1 {
		return nil, fmt.Errorf("%w: num_seats must be at least 1", ErrInvalidInput)
	}

	trip, err := s.trips.GetByID(tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	if trip.Status != models.TripStatusPublished {
		return nil, ErrTripNotBookable
	}
	if trip.AvailableSeats < req.NumSeats {
		return nil, ErrInsufficientSeats
	}

	now := s.now().UTC()
	booking := &models.Booking{
		TripID:         trip.ID,
		UserID:         req.UserID,
		NumSeats:       req.NumSeats,
		State:          models.BookingStatePendingPayment,
		PriceAtBooking: trip.Price.Mul(decimal.NewFromInt(int64(req.NumSeats))),
		ExpiresAt:      now.Add(s.config.ExpiryWindow),
	}

	held, err := s.bookings.CreateWithSeatHold(booking)
	if err != nil {
		return nil, err
	}
	if !held {
		// Lost the race: availability or trip status changed between the
		// read above and the conditional decrement.
		return nil, ErrInsufficientSeats
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"trip_id":    trip.ID,
		"user_id":    booking.UserID,
		"num_seats":  booking.NumSeats,
		"expires_at": booking.ExpiresAt,
	}).Info("Booking created, seats held")

	return booking, nil
}

// CancelBooking cancels a booking under the trip's refund policy. Seats are
// released on every cancellation regardless of the refund cutoff; only the
// refund amount honors the cutoff.
func (s *ReservationService) CancelBooking(bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.State.IsTerminalForCancellation() {
		return nil, ErrAlreadyFinalized
	}

	trip, err := s.trips.GetByID(booking.TripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}

	refund := s.RefundAmount(booking, trip, s.now().UTC())

	cancelled, err := s.bookings.CancelWithSeatRelease(
		booking.ID, trip.ID, booking.NumSeats, booking.State, refund)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		// A webhook or the sweeper moved the booking first.
		return nil, ErrAlreadyFinalized
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"trip_id":        trip.ID,
		"num_seats":      booking.NumSeats,
		"refund_amount":  refund,
		"previous_state": booking.State,
	}).Info("Booking cancelled, seats released")

	return s.bookings.GetByID(booking.ID)
}

// GetBooking returns a booking by ID
func (s *ReservationService) GetBooking(bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

// RefundAmount computes the refund for cancelling the booking at the given
// time. Only a CONFIRMED booking cancelled before the trip's refund cutoff
// is refunded: price_at_booking minus the cancellation fee, rounded to two
// decimal places half-up. An unpaid booking has nothing to refund.
func (s *ReservationService) RefundAmount(booking *models.Booking, trip *models.Trip, at time.Time) decimal.Decimal {
	if booking.State != models.BookingStateConfirmed {
		return decimal.Zero
	}
	if !at.Before(trip.RefundCutoff()) {
		return decimal.Zero
	}

	fee := trip.CancellationFeePercent
	if fee < 0 {
		fee = 0
	}
	if fee > 100 {
		fee = 100
	}
	return booking.PriceAtBooking.
		Mul(decimal.NewFromInt(int64(100 - fee))).
		Div(decimal.NewFromInt(100)).
		Round(2)
}
