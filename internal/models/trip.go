package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TripStatus represents the lifecycle status of a trip
// Matches PostgreSQL ENUM: trip_status
type TripStatus string

const (
	TripStatusDraft     TripStatus = "DRAFT"     // Not yet bookable
	TripStatusPublished TripStatus = "PUBLISHED" // Open for booking
	TripStatusClosed    TripStatus = "CLOSED"    // Departed or cancelled by operator
)

// Trip is a bookable inventory unit with finite seat capacity.
// available_seats is the only mutable counter; it is adjusted exclusively
// through conditional UPDATEs inside reservation/release transactions.
type Trip struct {
	ID                        uuid.UUID       `db:"id" json:"id"`
	Title                     string          `db:"title" json:"title"`
	Destination               string          `db:"destination" json:"destination"`
	StartDate                 time.Time       `db:"start_date" json:"start_date"`
	EndDate                   time.Time       `db:"end_date" json:"end_date"`
	Price                     decimal.Decimal `db:"price" json:"price"`
	MaxCapacity               int             `db:"max_capacity" json:"max_capacity"`
	AvailableSeats            int             `db:"available_seats" json:"available_seats"`
	Status                    TripStatus      `db:"status" json:"status"`
	RefundableUntilDaysBefore int             `db:"refundable_until_days_before" json:"refundable_until_days_before"`
	CancellationFeePercent    int             `db:"cancellation_fee_percent" json:"cancellation_fee_percent"`
	CreatedAt                 time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time       `db:"updated_at" json:"updated_at"`
}

// RefundCutoff returns the moment after which a cancellation is no longer
// refundable for this trip.
func (t *Trip) RefundCutoff() time.Time {
	return t.StartDate.AddDate(0, 0, -t.RefundableUntilDaysBefore)
}

// CommittedSeats returns seats currently held by active bookings.
func (t *Trip) CommittedSeats() int {
	return t.MaxCapacity - t.AvailableSeats
}

// OccupancyPercent returns committed occupancy as a percentage of capacity.
func (t *Trip) OccupancyPercent() float64 {
	if t.MaxCapacity <= 0 {
		return 0
	}
	pct := float64(t.CommittedSeats()) / float64(t.MaxCapacity) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// CreateTripRequest is the payload for creating a trip
type CreateTripRequest struct {
	Title                     string          `json:"title" binding:"required"`
	Destination               string          `json:"destination" binding:"required"`
	StartDate                 time.Time       `json:"start_date" binding:"required"`
	EndDate                   time.Time       `json:"end_date" binding:"required"`
	Price                     decimal.Decimal `json:"price" binding:"required"`
	MaxCapacity               int             `json:"max_capacity" binding:"required,min=1"`
	RefundableUntilDaysBefore int             `json:"refundable_until_days_before" binding:"min=0"`
	CancellationFeePercent    int             `json:"cancellation_fee_percent" binding:"min=0,max=100"`
	PublishNow                bool            `json:"publish_now"`
}

// Validate checks constraints gin binding cannot express
func (r *CreateTripRequest) Validate() error {
	if !r.Price.IsPositive() {
		return fmt.Errorf("price must be positive")
	}
	if r.EndDate.Before(r.StartDate) {
		return fmt.Errorf("end_date must not be before start_date")
	}
	return nil
}

// TripMetricsResponse is the admin analytics payload for a single trip
type TripMetricsResponse struct {
	TripID           uuid.UUID        `json:"trip_id"`
	Title            string           `json:"title"`
	OccupancyPercent float64          `json:"occupancy_percent"`
	MaxCapacity      int              `json:"max_capacity"`
	ConfirmedSeats   int              `json:"confirmed_seats"`
	AvailableSeats   int              `json:"available_seats"`
	Bookings         BookingSummary   `json:"bookings"`
	Finances         FinancialSummary `json:"finances"`
}

// BookingSummary counts bookings per state for one trip
type BookingSummary struct {
	Confirmed int `json:"confirmed"`
	Pending   int `json:"pending"`
	Cancelled int `json:"cancelled"`
	Expired   int `json:"expired"`
}

// FinancialSummary aggregates revenue for one trip
type FinancialSummary struct {
	GrossRevenue  decimal.Decimal `json:"gross_revenue"`
	RefundsIssued decimal.Decimal `json:"refunds_issued"`
	NetRevenue    decimal.Decimal `json:"net_revenue"`
}

// AtRiskTrip is a published trip near departure with low occupancy
type AtRiskTrip struct {
	TripID           uuid.UUID `json:"trip_id"`
	Title            string    `json:"title"`
	StartDate        time.Time `json:"start_date"`
	OccupancyPercent float64   `json:"occupancy_percent"`
	Reason           string    `json:"reason"`
}

// AtRiskTripsResponse wraps the at-risk listing
type AtRiskTripsResponse struct {
	AtRiskTrips []AtRiskTrip `json:"at_risk_trips"`
}
