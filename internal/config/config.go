package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Booking  BookingConfig
	AtRisk   AtRiskConfig
	CORS     CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// BookingConfig holds the booking lifecycle knobs
type BookingConfig struct {
	ExpiryWindow      time.Duration // how long a PENDING_PAYMENT booking holds seats
	SweepInterval     time.Duration // how often the expiry sweeper runs
	SweepBatchSize    int           // max bookings processed per sweep pass
	ReportCronSpec    string        // schedule for the nightly at-risk report
	ReportCronEnabled bool
}

// AtRiskConfig holds the occupancy reporting thresholds
type AtRiskConfig struct {
	DaysBeforeDeparture      int
	LowOccupancyThresholdPct int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Booking: BookingConfig{
			ExpiryWindow:      time.Duration(getEnvAsInt("BOOKING_EXPIRY_MINUTES", 15)) * time.Minute,
			SweepInterval:     time.Duration(getEnvAsInt("EXPIRY_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
			SweepBatchSize:    getEnvAsInt("EXPIRY_SWEEP_BATCH", 100),
			ReportCronSpec:    getEnv("AT_RISK_REPORT_CRON", "0 0 6 * * *"),
			ReportCronEnabled: getEnvAsBool("AT_RISK_REPORT_ENABLED", true),
		},
		AtRisk: AtRiskConfig{
			DaysBeforeDeparture:      getEnvAsInt("AT_RISK_DAYS_BEFORE", 7),
			LowOccupancyThresholdPct: getEnvAsInt("LOW_OCCUPANCY_THRESHOLD_PERCENT", 50),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Booking.ExpiryWindow <= 0 {
		return fmt.Errorf("BOOKING_EXPIRY_MINUTES must be positive")
	}
	if c.Booking.SweepInterval <= 0 {
		return fmt.Errorf("EXPIRY_SWEEP_INTERVAL_SECONDS must be positive")
	}
	if c.Booking.SweepBatchSize <= 0 {
		return fmt.Errorf("EXPIRY_SWEEP_BATCH must be positive")
	}
	if c.AtRisk.LowOccupancyThresholdPct < 0 || c.AtRisk.LowOccupancyThresholdPct > 100 {
		return fmt.Errorf("LOW_OCCUPANCY_THRESHOLD_PERCENT must be between 0 and 100")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsSlice gets an environment variable as a comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
