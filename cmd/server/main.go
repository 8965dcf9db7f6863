package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/gotyolo/booking-service/internal/config"
	"github.com/gotyolo/booking-service/internal/database"
	"github.com/gotyolo/booking-service/internal/handlers"
	"github.com/gotyolo/booking-service/internal/middleware"
	"github.com/gotyolo/booking-service/internal/services"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting GoTyolo Booking Service")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories
	tripRepo := database.NewTripRepository(db)
	bookingRepo := database.NewBookingRepository(db)

	// Services
	reservationService := services.NewReservationService(
		tripRepo, bookingRepo,
		services.ReservationConfig{ExpiryWindow: cfg.Booking.ExpiryWindow},
		logger,
	)
	webhookService := services.NewWebhookService(bookingRepo, logger)
	tripService := services.NewTripService(
		tripRepo, bookingRepo,
		services.AtRiskConfig{
			DaysBeforeDeparture:      cfg.AtRisk.DaysBeforeDeparture,
			LowOccupancyThresholdPct: cfg.AtRisk.LowOccupancyThresholdPct,
		},
		logger,
	)

	// Background expiry sweeper
	expiryService := services.NewBookingExpiryService(
		bookingRepo, cfg.Booking.SweepInterval, cfg.Booking.SweepBatchSize, logger)
	expiryService.Start()
	defer expiryService.Stop()

	// Nightly at-risk report
	var reportCron *services.ReportCronService
	if cfg.Booking.ReportCronEnabled {
		reportCron = services.NewReportCronService(tripService, cfg.Booking.ReportCronSpec, logger)
		if err := reportCron.Start(); err != nil {
			logger.Fatalf("Failed to start report cron: %v", err)
		}
		defer reportCron.Stop()
	}

	router := setupRouter(cfg, db, logger,
		handlers.NewTripHandler(tripService, logger),
		handlers.NewBookingHandler(reservationService, logger),
		handlers.NewWebhookHandler(webhookService, logger),
		handlers.NewAdminHandler(tripService, logger),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Infof("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	logger.Info("Server stopped")
}

func setupRouter(
	cfg *config.Config,
	db *sqlx.DB,
	logger *logrus.Logger,
	tripHandler *handlers.TripHandler,
	bookingHandler *handlers.BookingHandler,
	webhookHandler *handlers.WebhookHandler,
	adminHandler *handlers.AdminHandler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	corsConfig.AllowMethods = cfg.CORS.AllowedMethods
	corsConfig.AllowHeaders = cfg.CORS.AllowedHeaders
	if len(cfg.CORS.AllowedOrigins) == 1 && cfg.CORS.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowOrigins = nil
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(db))

	v1 := router.Group("/api/v1")
	{
		trips := v1.Group("/trips")
		{
			trips.POST("", tripHandler.CreateTrip)
			trips.GET("", tripHandler.ListTrips)
			trips.GET("/:trip_id", tripHandler.GetTrip)
			trips.POST("/:trip_id/book", bookingHandler.CreateBooking)
		}

		bookings := v1.Group("/bookings")
		{
			bookings.GET("/:booking_id", bookingHandler.GetBooking)
			bookings.POST("/:booking_id/cancel", bookingHandler.CancelBooking)
		}

		v1.POST("/payments/webhook", webhookHandler.PaymentWebhook)

		admin := v1.Group("/admin")
		{
			admin.GET("/trips/at-risk", adminHandler.ListAtRiskTrips)
			admin.GET("/trips/:trip_id/metrics", adminHandler.GetTripMetrics)
		}
	}

	return router
}

func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
