package handlers

import (
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/gotyolo/booking-service/internal/database"
	"github.com/gotyolo/booking-service/internal/models"
	"github.com/gotyolo/booking-service/internal/services"
)

// testStack wires the full handler stack over a mocked database so tests
// exercise the same error mapping the server uses.
type testStack struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	tripRepo := database.NewTripRepository(sqlxDB)
	bookingRepo := database.NewBookingRepository(sqlxDB)

	reservations := services.NewReservationService(
		tripRepo, bookingRepo, services.DefaultReservationConfig(), logger)
	webhooks := services.NewWebhookService(bookingRepo, logger)
	trips := services.NewTripService(
		tripRepo, bookingRepo, services.DefaultAtRiskConfig(), logger)

	bookingHandler := NewBookingHandler(reservations, logger)
	webhookHandler := NewWebhookHandler(webhooks, logger)
	tripHandler := NewTripHandler(trips, logger)
	adminHandler := NewAdminHandler(trips, logger)

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/trips", tripHandler.CreateTrip)
	v1.GET("/trips", tripHandler.ListTrips)
	v1.GET("/trips/:trip_id", tripHandler.GetTrip)
	v1.POST("/trips/:trip_id/book", bookingHandler.CreateBooking)
	v1.GET("/bookings/:booking_id", bookingHandler.GetBooking)
	v1.POST("/bookings/:booking_id/cancel", bookingHandler.CancelBooking)
	v1.POST("/payments/webhook", webhookHandler.PaymentWebhook)
	v1.GET("/admin/trips/at-risk", adminHandler.ListAtRiskTrips)
	v1.GET("/admin/trips/:trip_id/metrics", adminHandler.GetTripMetrics)

	return &testStack{router: router, mock: mock}
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
	now := time.Now().UTC()
	return sqlmock.NewRows(tripColumns).AddRow(
		id.String(), "Kalahari Overland", "Windhoek", start, start.AddDate(0, 0, 5),
		"100.00", 20, availableSeats, string(status), 7, 10, now, now,
	)
}

func bookingRow(id, tripID uuid.UUID, state models.BookingState) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(bookingColumns).AddRow(
		id.String(), tripID.String(), "user-42", 2, string(state), "200.00",
		nil, nil, nil, now, now.Add(15*time.Minute), nil, now,
	)
}
