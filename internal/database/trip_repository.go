package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gotyolo/booking-service/internal/models"
)

// TripRepository handles trips database operations
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

// Create inserts a new trip. available_seats starts at max_capacity.
func (r *TripRepository) Create(trip *models.Trip) error {
	trip.ID = uuid.New()
	trip.CreatedAt = time.Now().UTC()
	trip.UpdatedAt = trip.CreatedAt

	query := `
		INSERT INTO trips (
			id, title, destination, start_date, end_date, price,
			max_capacity, available_seats, status,
			refundable_until_days_before, cancellation_fee_percent,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(query,
		trip.ID, trip.Title, trip.Destination, trip.StartDate, trip.EndDate, trip.Price,
		trip.MaxCapacity, trip.AvailableSeats, trip.Status,
		trip.RefundableUntilDaysBefore, trip.CancellationFeePercent,
		trip.CreatedAt, trip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// GetByID returns a trip by ID, or nil if it does not exist
func (r *TripRepository) GetByID(id uuid.UUID) (*models.Trip, error) {
	query := `
		SELECT id, title, destination, start_date, end_date, price,
			   max_capacity, available_seats, status,
			   refundable_until_days_before, cancellation_fee_percent,
			   created_at, updated_at
		FROM trips
		WHERE id = $1`

	var trip models.Trip
	err := r.db.Get(&trip, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

// ListByStatus returns all trips in the given status, soonest departure first
func (r *TripRepository) ListByStatus(status models.TripStatus) ([]models.Trip, error) {
	query := `
		SELECT id, title, destination, start_date, end_date, price,
			   max_capacity, available_seats, status,
			   refundable_until_days_before, cancellation_fee_percent,
			   created_at, updated_at
		FROM trips
		WHERE status = $1
		ORDER BY start_date`

	var trips []models.Trip
	if err := r.db.Select(&trips, query, status); err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return trips, nil
}

// ListDepartingBefore returns trips in the given status departing before the
// cutoff, soonest first. Used by the at-risk occupancy report.
func (r *TripRepository) ListDepartingBefore(cutoff time.Time, status models.TripStatus) ([]models.Trip, error) {
	query := `
		SELECT id, title, destination, start_date, end_date, price,
			   max_capacity, available_seats, status,
			   refundable_until_days_before, cancellation_fee_percent,
			   created_at, updated_at
		FROM trips
		WHERE status = $1 AND start_date < $2
		ORDER BY start_date`

	var trips []models.Trip
	if err := r.db.Select(&trips, query, status, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list departing trips: %w", err)
	}
	return trips, nil
}
