package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gotyolo/booking-service/internal/database"
)

// BookingExpiryService is the background sweeper that times out
// PENDING_PAYMENT bookings and releases their held seats.
//
// Each booking is processed in its own transaction: one bad booking is
// logged and skipped, never aborting the rest of the pass. The state
// transition is a compare-and-set, so re-running after a partial failure is
// safe and a race with a late webhook resolves to exactly one winner.
type BookingExpiryService struct {
	bookings  *database.BookingRepository
	logger    *logrus.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

// NewBookingExpiryService creates a new booking expiry sweeper
func NewBookingExpiryService(
	bookings *database.BookingRepository,
	interval time.Duration,
	batchSize int,
	logger *logrus.Logger,
) *BookingExpiryService {
	return &BookingExpiryService{
		bookings:  bookings,
		logger:    logger,
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start begins the background sweep loop
func (s *BookingExpiryService) Start() {
	s.logger.WithField("interval", s.interval).Info("Starting booking expiry sweeper")
	go s.run()
}

// Stop stops the background sweep loop
func (s *BookingExpiryService) Stop() {
	s.logger.Info("Stopping booking expiry sweeper")
	close(s.stopCh)
}

func (s *BookingExpiryService) run() {
	// Run immediately on start
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.logger.Info("Booking expiry sweeper stopped")
			return
		}
	}
}

// RunOnce runs a single sweep pass (used by the maintenance command and tests)
func (s *BookingExpiryService) RunOnce() (expired int, failed int) {
	return s.sweep()
}

func (s *BookingExpiryService) sweep() (expired int, failed int) {
	infos, err := s.bookings.ListExpiredPending(s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list expired bookings")
		return 0, 0
	}
	if len(infos) == 0 {
		return 0, 0
	}

	s.logger.WithField("count", len(infos)).Info("Processing expired bookings")

	for _, info := range infos {
		applied, err := s.bookings.ExpireAndReleaseSeats(info)
		if err != nil {
			failed++
			s.logger.WithError(err).WithFields(logrus.Fields{
				"booking_id": info.BookingID,
				"trip_id":    info.TripID,
				"num_seats":  info.NumSeats,
			}).Error("Failed to expire booking")
			continue
		}
		if !applied {
			// A webhook got there first; its transition already settled
			// the seats.
			s.logger.WithField("booking_id", info.BookingID).
				Info("Booking already transitioned, skipping")
			continue
		}
		expired++
		s.logger.WithFields(logrus.Fields{
			"booking_id": info.BookingID,
			"trip_id":    info.TripID,
			"num_seats":  info.NumSeats,
		}).Info("Booking expired, seats released")
	}

	return expired, failed
}
