package services

import (
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotyolo/booking-service/internal/database"
	"github.com/gotyolo/booking-service/internal/models"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newReservationService(t *testing.T) (*ReservationService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	svc := NewReservationService(
		database.NewTripRepository(sqlxDB),
		database.NewBookingRepository(sqlxDB),
		DefaultReservationConfig(),
		newTestLogger(),
	)
	svc.now = func() time.Time { return testNow }
	return svc, mock
}

var tripColumns = []string{
	"id", "title", "destination", "start_date", "end_date", "price",
	"max_capacity", "available_seats", "status",
	"refundable_until_days_before", "cancellation_fee_percent",
	"created_at", "updated_at",
}

var bookingColumns = []string{
	"id", "trip_id", "user_id", "num_seats", "state", "price_at_booking",
	"payment_reference", "idempotency_key", "refund_amount",
	"created_at", "expires_at", "cancelled_at", "updated_at",
}

func tripRow(id uuid.UUID, status models.TripStatus, availableSeats int) *sqlmock.Rows {
	start := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(tripColumns).AddRow(
		id.String(), "Kalahari Overland", "Windhoek", start, start.AddDate(0, 0, 5),
		"100.00", 20, availableSeats, string(status), 7, 10, testNow, testNow,
	)
}

func bookingRow(id, tripID uuid.UUID, state models.BookingState) *sqlmock.Rows {
	return sqlmock.NewRows(bookingColumns).AddRow(
		id.String(), tripID.String(), "user-42", 2, string(state), "200.00",
		nil, nil, nil, testNow, testNow.Add(15*time.Minute), nil, testNow,
	)
}

func TestCreateBooking(t *testing.T) {
	tripID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs(tripID).
			WillReturnRows(tripRow(tripID, models.TripStatusPublished, 10))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE trips`).
			WithArgs(2, tripID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO bookings`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		booking, err := svc.CreateBooking(tripID, &models.CreateBookingRequest{
			UserID:   "user-42",
			NumSeats: 2,
		})
		require.NoError(t, err)
		require.NotNil(t, booking)
		assert.Equal(t, models.BookingStatePendingPayment, booking.State)
		assert.True(t, booking.PriceAtBooking.Equal(decimal.RequireFromString("200.00")),
			"expected 200.00, got %s", booking.PriceAtBooking)
		assert.Equal(t, testNow.Add(15*time.Minute), booking.ExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing User", func(t *testing.T) {
		svc, mock := newReservationService(t)

		_, err := svc.CreateBooking(tripID, &models.CreateBookingRequest{NumSeats: 2})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Zero Seats", func(t *testing.T) {
		svc, mock := newReservationService(t)

		_, err := svc.CreateBooking(tripID, &models.CreateBookingRequest{UserID: "user-42"})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Trip Not Found", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs(tripID).
			WillReturnError(sql.ErrNoRows)

		_, err := svc.CreateBooking(tripID, &models.CreateBookingRequest{
			UserID:   "user-42",
			NumSeats: 2,
		})
		assert.ErrorIs(t, err, ErrTripNotFound)
	})

	t.Run("Trip Not Published", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs(tripID).
			WillReturnRows(tripRow(tripID, models.TripStatusDraft, 10))

		_, err := svc.CreateBooking(tripID, &models.CreateBookingRequest{
			UserID:   "user-42",
			NumSeats: 2,
		})
		assert.ErrorIs(t, err, ErrTripNotBookable)
	})

	t.Run("Insufficient Seats", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs(tripID).
			WillReturnRows(tripRow(tripID, models.TripStatusPublished, 1))

		_, err := svc.CreateBooking(tripID, &models.CreateBookingRequest{
			UserID:   "user-42",
			NumSeats: 2,
		})
		assert.ErrorIs(t, err, ErrInsufficientSeats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lost Hold Race", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs(tripID).
			WillReturnRows(tripRow(tripID, models.TripStatusPublished, 10))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE trips`).
			WithArgs(2, tripID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := svc.CreateBooking(tripID, &models.CreateBookingRequest{
			UserID:   "user-42",
			NumSeats: 2,
		})
		assert.ErrorIs(t, err, ErrInsufficientSeats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCancelBooking(t *testing.T) {
	bookingID := uuid.New()
	tripID := uuid.New()

	t.Run("Confirmed Before Cutoff Gets Refund", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs(bookingID).
			WillReturnRows(bookingRow(bookingID, tripID, models.BookingStateConfirmed))
		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs(tripID).
			WillReturnRows(tripRow(tripID, models.TripStatusPublished, 10))
		mock.ExpectBegin()
		// 200.00 priced booking at 10% fee: refund 180.00
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(bookingID, "180.00", models.BookingStateConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE trips`).
			WithArgs(2, tripID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs(bookingID).
			WillReturnRows(sqlmock.NewRows(bookingColumns).AddRow(
				bookingID.String(), tripID.String(), "user-42", 2, string(models.BookingStateCancelled), "200.00",
				nil, nil, "180.00", testNow, testNow.Add(15*time.Minute), testNow, testNow,
			))

		booking, err := svc.CancelBooking(bookingID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStateCancelled, booking.State)
		require.True(t, booking.RefundAmount.Valid)
		assert.True(t, booking.RefundAmount.Decimal.Equal(decimal.RequireFromString("180.00")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Pending Cancel Releases Seats Without Refund", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs(bookingID).
			WillReturnRows(bookingRow(bookingID, tripID, models.BookingStatePendingPayment))
		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs(tripID).
			WillReturnRows(tripRow(tripID, models.TripStatusPublished, 10))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(bookingID, "0", models.BookingStatePendingPayment).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE trips`).
			WithArgs(2, tripID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs(bookingID).
			WillReturnRows(sqlmock.NewRows(bookingColumns).AddRow(
				bookingID.String(), tripID.String(), "user-42", 2, string(models.BookingStateCancelled), "200.00",
				nil, nil, "0", testNow, testNow.Add(15*time.Minute), testNow, testNow,
			))

		booking, err := svc.CancelBooking(bookingID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStateCancelled, booking.State)
		require.True(t, booking.RefundAmount.Valid)
		assert.True(t, booking.RefundAmount.Decimal.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs(bookingID).
			WillReturnError(sql.ErrNoRows)

		_, err := svc.CancelBooking(bookingID)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("Already Cancelled", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs(bookingID).
			WillReturnRows(bookingRow(bookingID, tripID, models.BookingStateCancelled))

		_, err := svc.CancelBooking(bookingID)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Expired", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs(bookingID).
			WillReturnRows(bookingRow(bookingID, tripID, models.BookingStateExpired))

		_, err := svc.CancelBooking(bookingID)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)
	})

	t.Run("Lost Cancel Race", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs(bookingID).
			WillReturnRows(bookingRow(bookingID, tripID, models.BookingStatePendingPayment))
		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs(tripID).
			WillReturnRows(tripRow(tripID, models.TripStatusPublished, 10))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(bookingID, "0", models.BookingStatePendingPayment).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := svc.CancelBooking(bookingID)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRefundAmount(t *testing.T) {
	svc, _ := newReservationService(t)

	trip := &models.Trip{
		StartDate:                 time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
		RefundableUntilDaysBefore: 7,
		CancellationFeePercent:    10,
	}
	cutoff := trip.RefundCutoff() // 2026-05-25 08:00 UTC
	beforeCutoff := cutoff.Add(-time.Hour)
	afterCutoff := cutoff.Add(time.Hour)

	confirmed := func(price string) *models.Booking {
		return &models.Booking{
			State:          models.BookingStateConfirmed,
			PriceAtBooking: decimal.RequireFromString(price),
		}
	}

	tests := []struct {
		name     string
		booking  *models.Booking
		trip     *models.Trip
		at       time.Time
		expected string
	}{
		{
			name:     "Confirmed Before Cutoff",
			booking:  confirmed("100.00"),
			trip:     trip,
			at:       beforeCutoff,
			expected: "90.00",
		},
		{
			name:     "Rounds Half Up",
			booking:  confirmed("10.01"),
			trip:     &models.Trip{StartDate: trip.StartDate, RefundableUntilDaysBefore: 7, CancellationFeePercent: 50},
			at:       beforeCutoff,
			expected: "5.01", // 10.01 * 0.5 = 5.005
		},
		{
			name:     "Zero Fee Refunds Full Price",
			booking:  confirmed("249.99"),
			trip:     &models.Trip{StartDate: trip.StartDate, RefundableUntilDaysBefore: 7},
			at:       beforeCutoff,
			expected: "249.99",
		},
		{
			name:     "Full Fee Refunds Nothing",
			booking:  confirmed("100.00"),
			trip:     &models.Trip{StartDate: trip.StartDate, RefundableUntilDaysBefore: 7, CancellationFeePercent: 100},
			at:       beforeCutoff,
			expected: "0",
		},
		{
			name:     "After Cutoff",
			booking:  confirmed("100.00"),
			trip:     trip,
			at:       afterCutoff,
			expected: "0",
		},
		{
			name:     "Exactly At Cutoff",
			booking:  confirmed("100.00"),
			trip:     trip,
			at:       cutoff,
			expected: "0",
		},
		{
			name: "Unpaid Booking",
			booking: &models.Booking{
				State:          models.BookingStatePendingPayment,
				PriceAtBooking: decimal.RequireFromString("100.00"),
			},
			trip:     trip,
			at:       beforeCutoff,
			expected: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.RefundAmount(tt.booking, tt.trip, tt.at)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)),
				"expected %s, got %s", tt.expected, got)
		})
	}
}

func TestGetBooking(t *testing.T) {
	bookingID := uuid.New()
	tripID := uuid.New()

	t.Run("Found", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs(bookingID).
			WillReturnRows(bookingRow(bookingID, tripID, models.BookingStateConfirmed))

		booking, err := svc.GetBooking(bookingID)
		require.NoError(t, err)
		assert.Equal(t, bookingID, booking.ID)
		assert.Equal(t, models.BookingStateConfirmed, booking.State)
	})

	t.Run("Not Found", func(t *testing.T) {
		svc, mock := newReservationService(t)

		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WithArgs(bookingID).
			WillReturnError(sql.ErrNoRows)

		_, err := svc.GetBooking(bookingID)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})
}
