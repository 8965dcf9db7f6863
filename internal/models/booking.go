package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingState represents the lifecycle state of a booking
// Matches PostgreSQL ENUM: booking_state
type BookingState string

const (
	BookingStatePendingPayment BookingState = "PENDING_PAYMENT" // Seats held, awaiting payment webhook
	BookingStateConfirmed      BookingState = "CONFIRMED"       // Payment captured
	BookingStateCancelled      BookingState = "CANCELLED"       // User cancelled
	BookingStateExpired        BookingState = "EXPIRED"         // Payment window elapsed or payment failed
)

// IsTerminalForCancellation reports whether a booking in this state can no
// longer be cancelled.
func (s BookingState) IsTerminalForCancellation() bool {
	return s == BookingStateCancelled || s == BookingStateExpired
}

// Booking is a user's reservation of num_seats on a trip.
//
// price_at_booking is locked at creation and never changes. idempotency_key
// is set once by the first accepted payment webhook and never overwritten;
// every webhook write is guarded on `idempotency_key IS NULL`.
type Booking struct {
	ID               uuid.UUID           `db:"id" json:"id"`
	TripID           uuid.UUID           `db:"trip_id" json:"trip_id"`
	UserID           string              `db:"user_id" json:"user_id"`
	NumSeats         int                 `db:"num_seats" json:"num_seats"`
	State            BookingState        `db:"state" json:"state"`
	PriceAtBooking   decimal.Decimal     `db:"price_at_booking" json:"price_at_booking"`
	PaymentReference *string             `db:"payment_reference" json:"payment_reference,omitempty"`
	IdempotencyKey   *string             `db:"idempotency_key" json:"idempotency_key,omitempty"`
	RefundAmount     decimal.NullDecimal `db:"refund_amount" json:"refund_amount"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	ExpiresAt        time.Time           `db:"expires_at" json:"expires_at"`
	CancelledAt      *time.Time          `db:"cancelled_at" json:"cancelled_at,omitempty"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
}

// ExpiredBookingInfo is the minimal projection the expiry sweeper needs to
// release a timed-out booking's seats.
type ExpiredBookingInfo struct {
	BookingID uuid.UUID `db:"id"`
	TripID    uuid.UUID `db:"trip_id"`
	NumSeats  int       `db:"num_seats"`
}

// CreateBookingRequest is the payload for reserving seats on a trip
type CreateBookingRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	NumSeats int    `json:"num_seats" binding:"required,min=1"`
}

// WebhookRequest is the payment provider notification payload.
// No binding tags: a malformed webhook must still be acknowledged with 200,
// so the handler never rejects it at the binding layer.
type WebhookRequest struct {
	BookingID      string `json:"booking_id"`
	Status         string `json:"status"` // "success" | "failed"
	IdempotencyKey string `json:"idempotency_key"`
}
