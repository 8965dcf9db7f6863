package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/gotyolo/booking-service/internal/models"
)

// Seat counter mutations. The hold is guarded by trip status and current
// availability, the release is bounded by max_capacity; both are single
// atomic UPDATEs, so two racing reservations can never both pass the
// availability check on stale data.
const (
	holdSeatsQuery = `
		UPDATE trips
		SET available_seats = available_seats - $1, updated_at = NOW()
		WHERE id = $2 AND status = 'PUBLISHED' AND available_seats >= $1`

	releaseSeatsQuery = `
		UPDATE trips
		SET available_seats = LEAST(available_seats + $1, max_capacity), updated_at = NOW()
		WHERE id = $2`
)

// BookingRepository handles bookings database operations.
//
// Every operation that moves a booking between states AND touches the trip's
// seat counter runs both writes inside one transaction, so no intermediate
// state is externally observable.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateWithSeatHold atomically decrements the trip's available seats and
// inserts the booking. Returns false when the hold failed (trip missing, not
// PUBLISHED, or insufficient seats at commit time) — in that case nothing is
// written.
func (r *BookingRepository) CreateWithSeatHold(booking *models.Booking) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(holdSeatsQuery, booking.NumSeats, booking.TripID)
	if err != nil {
		return false, fmt.Errorf("failed to hold seats: %w", err)
	}
	held, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if held == 0 {
		return false, nil
	}

	booking.ID = uuid.New()
	booking.CreatedAt = time.Now().UTC()
	booking.UpdatedAt = booking.CreatedAt

	_, err = tx.Exec(`
		INSERT INTO bookings (
			id, trip_id, user_id, num_seats, state, price_at_booking,
			expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		booking.ID, booking.TripID, booking.UserID, booking.NumSeats,
		booking.State, booking.PriceAtBooking,
		booking.ExpiresAt, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit booking: %w", err)
	}
	return true, nil
}

// GetByID returns a booking by ID, or nil if it does not exist
func (r *BookingRepository) GetByID(id uuid.UUID) (*models.Booking, error) {
	query := `
		SELECT id, trip_id, user_id, num_seats, state, price_at_booking,
			   payment_reference, idempotency_key, refund_amount,
			   created_at, expires_at, cancelled_at, updated_at
		FROM bookings
		WHERE id = $1`

	var booking models.Booking
	err := r.db.Get(&booking, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// ExistsByIdempotencyKey reports whether any booking already recorded the
// given payment idempotency key.
func (r *BookingRepository) ExistsByIdempotencyKey(key string) (bool, error) {
	var exists bool
	err := r.db.Get(&exists,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE idempotency_key = $1)`, key)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return exists, nil
}

// ListExpiredPending returns PENDING_PAYMENT bookings whose payment window
// has elapsed, oldest first, capped at limit.
func (r *BookingRepository) ListExpiredPending(limit int) ([]models.ExpiredBookingInfo, error) {
	query := `
		SELECT id, trip_id, num_seats
		FROM bookings
		WHERE state = 'PENDING_PAYMENT' AND expires_at < NOW()
		ORDER BY expires_at
		LIMIT $1`

	var infos []models.ExpiredBookingInfo
	if err := r.db.Select(&infos, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired bookings: %w", err)
	}
	return infos, nil
}

// ExpireAndReleaseSeats atomically transitions PENDING_PAYMENT -> EXPIRED and
// returns the booking's seats to the trip. Returns false when another actor
// (a late webhook, a concurrent sweep) already transitioned the booking; the
// caller treats that as a no-op, not a failure.
func (r *BookingRepository) ExpireAndReleaseSeats(info models.ExpiredBookingInfo) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE bookings
		SET state = 'EXPIRED', updated_at = NOW()
		WHERE id = $1 AND state = 'PENDING_PAYMENT'`,
		info.BookingID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to expire booking: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := tx.Exec(releaseSeatsQuery, info.NumSeats, info.TripID); err != nil {
		return false, fmt.Errorf("failed to release seats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit expiry: %w", err)
	}
	return true, nil
}

// ConfirmPendingPayment transitions PENDING_PAYMENT -> CONFIRMED and records
// the payment reference and idempotency key. The idempotency_key IS NULL
// guard makes the first webhook win; replays and races observe zero rows.
func (r *BookingRepository) ConfirmPendingPayment(bookingID uuid.UUID, idempotencyKey string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE bookings
		SET state = 'CONFIRMED', payment_reference = $2, idempotency_key = $2, updated_at = NOW()
		WHERE id = $1 AND state = 'PENDING_PAYMENT' AND idempotency_key IS NULL`,
		bookingID, idempotencyKey,
	)
	if err != nil {
		return false, fmt.Errorf("failed to confirm booking: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// FailPendingPayment transitions PENDING_PAYMENT -> EXPIRED on a failed
// payment, records the idempotency key, and releases the held seats, all in
// one transaction. Returns false when the booking already left
// PENDING_PAYMENT or already recorded a key.
func (r *BookingRepository) FailPendingPayment(info models.ExpiredBookingInfo, idempotencyKey string) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE bookings
		SET state = 'EXPIRED', idempotency_key = $2, updated_at = NOW()
		WHERE id = $1 AND state = 'PENDING_PAYMENT' AND idempotency_key IS NULL`,
		info.BookingID, idempotencyKey,
	)
	if err != nil {
		return false, fmt.Errorf("failed to fail booking: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := tx.Exec(releaseSeatsQuery, info.NumSeats, info.TripID); err != nil {
		return false, fmt.Errorf("failed to release seats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit failed payment: %w", err)
	}
	return true, nil
}

// CancelWithSeatRelease transitions the booking to CANCELLED, records the
// refund, and returns its seats to the trip in one transaction. The update is
// guarded on the state the caller observed, so a concurrent webhook or sweep
// makes the cancel lose cleanly (zero rows, no seat release).
func (r *BookingRepository) CancelWithSeatRelease(
	bookingID, tripID uuid.UUID,
	numSeats int,
	fromState models.BookingState,
	refundAmount decimal.Decimal,
) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE bookings
		SET state = 'CANCELLED', refund_amount = $2, cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND state = $3`,
		bookingID, refundAmount, fromState,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := tx.Exec(releaseSeatsQuery, numSeats, tripID); err != nil {
		return false, fmt.Errorf("failed to release seats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return true, nil
}

// CountByTripAndState counts bookings on a trip in the given state
func (r *BookingRepository) CountByTripAndState(tripID uuid.UUID, state models.BookingState) (int, error) {
	var count int
	err := r.db.Get(&count,
		`SELECT COUNT(*) FROM bookings WHERE trip_id = $1 AND state = $2`,
		tripID, state)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// SumSeatsByTripAndState sums num_seats over bookings on a trip in the given state
func (r *BookingRepository) SumSeatsByTripAndState(tripID uuid.UUID, state models.BookingState) (int, error) {
	var seats int
	err := r.db.Get(&seats,
		`SELECT COALESCE(SUM(num_seats), 0) FROM bookings WHERE trip_id = $1 AND state = $2`,
		tripID, state)
	if err != nil {
		return 0, fmt.Errorf("failed to sum booked seats: %w", err)
	}
	return seats, nil
}

// GrossRevenue sums price_at_booking over CONFIRMED bookings on a trip
func (r *BookingRepository) GrossRevenue(tripID uuid.UUID) (decimal.Decimal, error) {
	var revenue decimal.Decimal
	err := r.db.Get(&revenue,
		`SELECT COALESCE(SUM(price_at_booking), 0) FROM bookings WHERE trip_id = $1 AND state = 'CONFIRMED'`,
		tripID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum gross revenue: %w", err)
	}
	return revenue, nil
}

// TotalRefunds sums refund_amount over cancelled bookings on a trip
func (r *BookingRepository) TotalRefunds(tripID uuid.UUID) (decimal.Decimal, error) {
	var refunds decimal.Decimal
	err := r.db.Get(&refunds,
		`SELECT COALESCE(SUM(refund_amount), 0) FROM bookings WHERE trip_id = $1 AND refund_amount IS NOT NULL`,
		tripID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum refunds: %w", err)
	}
	return refunds, nil
}
