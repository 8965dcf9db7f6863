// Command sweep runs a single booking-expiry pass and exits. Useful for
// operators reconciling after an incident without waiting for the in-process
// sweeper's next tick.
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/gotyolo/booking-service/internal/config"
	"github.com/gotyolo/booking-service/internal/database"
	"github.com/gotyolo/booking-service/internal/services"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	bookingRepo := database.NewBookingRepository(db)
	sweeper := services.NewBookingExpiryService(
		bookingRepo, cfg.Booking.SweepInterval, cfg.Booking.SweepBatchSize, logger)

	expired, failed := sweeper.RunOnce()
	logger.WithFields(logrus.Fields{
		"expired": expired,
		"failed":  failed,
	}).Info("Expiry sweep completed")

	if failed > 0 {
		os.Exit(1)
	}
}
