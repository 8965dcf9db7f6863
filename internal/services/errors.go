package services

import "errors"

// Service-level errors the HTTP layer maps onto status codes.
var (
	ErrTripNotFound      = errors.New("trip not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrTripNotBookable   = errors.New("trip is not open for booking")
	ErrInsufficientSeats = errors.New("not enough seats available")
	ErrAlreadyFinalized  = errors.New("booking is already cancelled or expired")
	ErrInvalidInput      = errors.New("invalid input")
)
