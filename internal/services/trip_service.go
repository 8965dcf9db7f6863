package services

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/gotyolo/booking-service/internal/database"
	"github.com/gotyolo/booking-service/internal/models"
)

// AtRiskConfig holds thresholds for the at-risk occupancy report
type AtRiskConfig struct {
	DaysBeforeDeparture      int
	LowOccupancyThresholdPct int
}

// DefaultAtRiskConfig returns default configuration
func DefaultAtRiskConfig() AtRiskConfig {
	return AtRiskConfig{
		DaysBeforeDeparture:      7,
		LowOccupancyThresholdPct: 50,
	}
}

// TripService handles trip inventory management and reporting
type TripService struct {
	trips    *database.TripRepository
	bookings *database.BookingRepository
	atRisk   AtRiskConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewTripService creates a new TripService
func NewTripService(
	trips *database.TripRepository,
	bookings *database.BookingRepository,
	atRisk AtRiskConfig,
	logger *logrus.Logger,
) *TripService {
	return &TripService{
		trips:    trips,
		bookings: bookings,
		atRisk:   atRisk,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateTrip creates a trip with its full capacity available
func (s *TripService) CreateTrip(req *models.CreateTripRequest) (*models.Trip, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	status := models.TripStatusDraft
	if req.PublishNow {
		status = models.TripStatusPublished
	}

	trip := &models.Trip{
		Title:                     req.Title,
		Destination:               req.Destination,
		StartDate:                 req.StartDate,
		EndDate:                   req.EndDate,
		Price:                     req.Price,
		MaxCapacity:               req.MaxCapacity,
		AvailableSeats:            req.MaxCapacity,
		Status:                    status,
		RefundableUntilDaysBefore: req.RefundableUntilDaysBefore,
		CancellationFeePercent:    req.CancellationFeePercent,
	}

	if err := s.trips.Create(trip); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":      trip.ID,
		"title":        trip.Title,
		"max_capacity": trip.MaxCapacity,
		"status":       trip.Status,
	}).Info("Trip created")

	return trip, nil
}

// ListPublishedTrips returns all trips open for booking
func (s *TripService) ListPublishedTrips() ([]models.Trip, error) {
	return s.trips.ListByStatus(models.TripStatusPublished)
}

// GetTripDetails returns a trip by ID
func (s *TripService) GetTripDetails(tripID uuid.UUID) (*models.Trip, error) {
	trip, err := s.trips.GetByID(tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	return trip, nil
}

// GetTripMetrics builds the admin analytics view for one trip
func (s *TripService) GetTripMetrics(tripID uuid.UUID) (*models.TripMetricsResponse, error) {
	trip, err := s.GetTripDetails(tripID)
	if err != nil {
		return nil, err
	}

	summary := models.BookingSummary{}
	for state, dest := range map[models.BookingState]*int{
		models.BookingStateConfirmed:      &summary.Confirmed,
		models.BookingStatePendingPayment: &summary.Pending,
		models.BookingStateCancelled:      &summary.Cancelled,
		models.BookingStateExpired:        &summary.Expired,
	} {
		count, err := s.bookings.CountByTripAndState(tripID, state)
		if err != nil {
			return nil, err
		}
		*dest = count
	}

	// Occupancy counts CONFIRMED seats only; pending holds are provisional.
	confirmedSeats, err := s.bookings.SumSeatsByTripAndState(tripID, models.BookingStateConfirmed)
	if err != nil {
		return nil, err
	}
	occupancy := 0.0
	if trip.MaxCapacity > 0 {
		occupancy = float64(confirmedSeats) / float64(trip.MaxCapacity) * 100
	}

	gross, err := s.bookings.GrossRevenue(tripID)
	if err != nil {
		return nil, err
	}
	refunds, err := s.bookings.TotalRefunds(tripID)
	if err != nil {
		return nil, err
	}
	net := gross.Sub(refunds.Abs())
	if net.IsNegative() {
		net = decimal.Zero
	}

	return &models.TripMetricsResponse{
		TripID:           trip.ID,
		Title:            trip.Title,
		OccupancyPercent: roundPercent(occupancy),
		MaxCapacity:      trip.MaxCapacity,
		ConfirmedSeats:   confirmedSeats,
		AvailableSeats:   trip.AvailableSeats,
		Bookings:         summary,
		Finances: models.FinancialSummary{
			GrossRevenue:  gross,
			RefundsIssued: refunds,
			NetRevenue:    net,
		},
	}, nil
}

// GetAtRiskTrips lists published trips departing within the configured
// window whose committed occupancy is below the threshold.
func (s *TripService) GetAtRiskTrips() (*models.AtRiskTripsResponse, error) {
	cutoff := s.now().AddDate(0, 0, s.atRisk.DaysBeforeDeparture)
	upcoming, err := s.trips.ListDepartingBefore(cutoff, models.TripStatusPublished)
	if err != nil {
		return nil, err
	}

	atRisk := make([]models.AtRiskTrip, 0)
	for _, trip := range upcoming {
		occupancy := trip.OccupancyPercent()
		if occupancy >= float64(s.atRisk.LowOccupancyThresholdPct) {
			continue
		}
		atRisk = append(atRisk, models.AtRiskTrip{
			TripID:           trip.ID,
			Title:            trip.Title,
			StartDate:        trip.StartDate,
			OccupancyPercent: roundPercent(occupancy),
			Reason:           "Low occupancy with imminent departure",
		})
	}

	return &models.AtRiskTripsResponse{AtRiskTrips: atRisk}, nil
}

func roundPercent(pct float64) float64 {
	return math.Round(pct*100) / 100
}
