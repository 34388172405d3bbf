// Package config provides configuration loading and management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Ledger connection and signing credentials
	RPCURL     string
	PrivateKey string
	ChainID    int64

	// Contract addresses
	HyperEngineAddress string
	AIOptimizerAddress string

	// Ledger catalog and asset settings
	StrategyCount int
	AssetDecimals int32

	// Minimum deposit in whole units of the principal asset
	MinDeposit decimal.Decimal

	// Prediction horizon used when the caller gives none
	DefaultHorizonDays int

	// Timeouts for reads and for transaction confirmation
	RequestTimeout      time.Duration
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration

	// Retries performed by the RPC transport, never by the core
	RPCRetryMax int

	// Inbound rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// CORS origin sent to browser clients
	CORSAllowedOrigin string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Circuit breaker settings for ledger calls
	BreakerFailureThreshold int
	BreakerResetDelay       time.Duration

	// Transaction event webhook
	WebhookURL       string
	WebhookAPIKey    string
	WebhookBatchSize int
	WebhookInterval  time.Duration
}

// Load creates a new Config from environment variables, reading an optional .env file first
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("Failed to read .env file: %v", err)
	}

	return Config{
		Port:                    GetEnvOrDefault("PORT", "3000"),
		RPCURL:                  GetEnvOrDefault("RPC_URL", ""),
		PrivateKey:              GetEnvOrDefault("PRIVATE_KEY", ""),
		ChainID:                 int64(GetEnvAsInt("CHAIN_ID", 0)),
		HyperEngineAddress:      GetEnvOrDefault("HYPER_ENGINE_ADDRESS", ""),
		AIOptimizerAddress:      GetEnvOrDefault("AI_OPTIMIZER_ADDRESS", ""),
		StrategyCount:           GetEnvAsInt("STRATEGY_COUNT", 8),
		AssetDecimals:           int32(GetEnvAsInt("ASSET_DECIMALS", 6)),
		MinDeposit:              GetEnvAsDecimal("MIN_DEPOSIT", decimal.NewFromInt(50)),
		DefaultHorizonDays:      GetEnvAsInt("DEFAULT_HORIZON_DAYS", 30),
		RequestTimeout:          GetEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		ConfirmTimeout:          GetEnvAsDuration("CONFIRM_TIMEOUT", 2*time.Minute),
		ConfirmPollInterval:     GetEnvAsDuration("CONFIRM_POLL_INTERVAL", 2*time.Second),
		RPCRetryMax:             GetEnvAsInt("RPC_RETRY_MAX", 3),
		RateLimitRPS:            GetEnvAsFloat("RATE_LIMIT_RPS", 10.0),
		RateLimitBurst:          GetEnvAsInt("RATE_LIMIT_BURST", 20),
		CORSAllowedOrigin:       GetEnvOrDefault("CORS_ALLOWED_ORIGIN", "*"),
		OtelEndpoint:            GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		BreakerFailureThreshold: GetEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerResetDelay:       GetEnvAsDuration("BREAKER_RESET_DELAY", 30*time.Second),
		WebhookURL:              GetEnvOrDefault("WEBHOOK_URL", ""),
		WebhookAPIKey:           GetEnvOrDefault("WEBHOOK_API_KEY", ""),
		WebhookBatchSize:        GetEnvAsInt("WEBHOOK_BATCH_SIZE", 20),
		WebhookInterval:         GetEnvAsDuration("WEBHOOK_INTERVAL", time.Minute),
	}
}

// Validate reports every missing or malformed setting the service cannot start without
func (c Config) Validate() error {
	var problems []string

	if c.RPCURL == "" {
		problems = append(problems, "RPC_URL is required")
	}
	if c.PrivateKey == "" {
		problems = append(problems, "PRIVATE_KEY is required")
	}
	if !common.IsHexAddress(c.HyperEngineAddress) {
		problems = append(problems, "HYPER_ENGINE_ADDRESS must be a hex address")
	}
	if !common.IsHexAddress(c.AIOptimizerAddress) {
		problems = append(problems, "AI_OPTIMIZER_ADDRESS must be a hex address")
	}
	if c.StrategyCount <= 0 {
		problems = append(problems, "STRATEGY_COUNT must be positive")
	}
	if c.AssetDecimals < 0 {
		problems = append(problems, "ASSET_DECIMALS must not be negative")
	}
	if c.MinDeposit.IsNegative() {
		problems = append(problems, "MIN_DEPOSIT must not be negative")
	}
	if c.ConfirmTimeout <= 0 {
		problems = append(problems, "CONFIRM_TIMEOUT must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.Warnf("Invalid integer in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		logrus.Warnf("Invalid float in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		logrus.Warnf("Invalid boolean in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.Warnf("Invalid duration in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsDecimal retrieves an environment variable as an exact decimal with a default value
func GetEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value, exists := GetEnv(key); exists {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
		logrus.Warnf("Invalid decimal in %s, using default: %s", key, defaultValue)
	}
	return defaultValue
}
