package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradegateway/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all gateway configuration.
type Config struct {
	// Venue API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Session / reconnect policy
	ReconnectLimit int           // Max consecutive failed connect attempts
	ReconnectDelay time.Duration // Fixed delay between attempts

	// Market data
	SubscribeRetries  int           // Per-batch subscribe attempts
	SubscribeDelay    time.Duration // Delay between subscribe attempts
	HeartbeatInterval time.Duration // Data channel ping interval
	DataReconnectMax  int           // Data channel reconnect budget

	// Ingestion pipeline
	QueueCapacity int // Bounded tick queue depth

	// History cache
	DBPath string

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	UseZapLog bool            // Structured zap output instead of the std logger
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Venue API
	cfg.APIKey = getEnv("VENUE_API_KEY", "")
	cfg.SecretKey = getEnv("VENUE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	if cfg.APIKey == "" {
		errs = append(errs, "VENUE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "VENUE_API_SECRET must be set")
	}

	// Session reconnect policy
	cfg.ReconnectLimit, err = getEnvAsIntRequired("RECONNECT_LIMIT", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RECONNECT_LIMIT: %v", err))
	} else if cfg.ReconnectLimit <= 0 {
		errs = append(errs, "RECONNECT_LIMIT must be positive")
	}
	cfg.ReconnectDelay, err = getEnvAsDuration("RECONNECT_DELAY", 5*time.Second)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RECONNECT_DELAY: %v", err))
	}

	// Market data
	cfg.SubscribeRetries, err = getEnvAsIntRequired("SUBSCRIBE_RETRIES", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SUBSCRIBE_RETRIES: %v", err))
	}
	cfg.SubscribeDelay, err = getEnvAsDuration("SUBSCRIBE_DELAY", 5*time.Second)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SUBSCRIBE_DELAY: %v", err))
	}
	cfg.HeartbeatInterval, err = getEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HEARTBEAT_INTERVAL: %v", err))
	}
	cfg.DataReconnectMax, err = getEnvAsIntRequired("DATA_RECONNECT_MAX", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DATA_RECONNECT_MAX: %v", err))
	}

	// Pipeline
	cfg.QueueCapacity, err = getEnvAsIntRequired("QUEUE_CAPACITY", 3000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid QUEUE_CAPACITY: %v", err))
	} else if cfg.QueueCapacity <= 0 {
		errs = append(errs, "QUEUE_CAPACITY must be positive")
	}

	// History cache
	cfg.DBPath = getEnv("DB_PATH", "./data/history.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.UseZapLog = getEnvAsBool("USE_ZAP_LOG", false)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- Env helpers ---

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
