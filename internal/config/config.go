// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	LogLevel  string
	LogFormat string

	// Price feed
	PriceFeedURL  string
	PriceTimeout  time.Duration
	PriceBackoff  time.Duration
	// Cap on one lookup made while estimating or totalling earnings
	PriceDeadline time.Duration

	// Submission
	ConfirmationTimeout  time.Duration
	ReceiptPollInterval  time.Duration
	GasMarginBps         int
	MintBatchSize        int
	DefaultRefuelCostUSD float64

	// TOML chain registry; empty uses the built-in registry
	ChainsFile string

	// Signing key, private key wins over mnemonic
	SignerPrivateKey string
	SignerMnemonic   string

	// Postgres submission journal; empty keeps it in memory
	JournalDSN string

	// Persistence API for confirmed mints and bridges; empty disables reporting
	ReportURL       string
	ReportAPIKey    string
	ReportBatchSize int
	ReportInterval  time.Duration
	ReportSign      bool

	// Origin used when building referral links
	RefLinkOrigin string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// HTTP rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Read-only RPC limiting and circuit breaker
	RPCRateLimitRPS        float64
	EarnedBreakerThreshold int
	EarnedBreakerCooldown  time.Duration
}

// Load creates a new Config from environment variables
func Load() Config {
	return Config{
		Port:                   GetEnvOrDefault("PORT", "8080"),
		LogLevel:               strings.ToLower(GetEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:              strings.ToLower(GetEnvOrDefault("LOG_FORMAT", "json")),
		PriceFeedURL:           GetEnvOrDefault("PRICE_FEED_URL", ""),
		PriceTimeout:           GetEnvAsDuration("PRICE_TIMEOUT", 10*time.Second),
		PriceBackoff:           GetEnvAsDuration("PRICE_BACKOFF", time.Second),
		PriceDeadline:          GetEnvAsDuration("PRICE_DEADLINE", 15*time.Second),
		ConfirmationTimeout:    GetEnvAsDuration("CONFIRMATION_TIMEOUT", 60*time.Second),
		ReceiptPollInterval:    GetEnvAsDuration("RECEIPT_POLL_INTERVAL", 2*time.Second),
		GasMarginBps:           GetEnvAsPositiveInt("GAS_MARGIN_BPS", 12000), // +20%
		MintBatchSize:          GetEnvAsPositiveInt("MINT_BATCH_SIZE", 1),
		DefaultRefuelCostUSD:   GetEnvAsFloat("DEFAULT_REFUEL_COST_USD", 0.25),
		ChainsFile:             GetEnvOrDefault("CHAINS_FILE", ""),
		SignerPrivateKey:       GetEnvOrDefault("SIGNER_PRIVATE_KEY", ""),
		SignerMnemonic:         GetEnvOrDefault("SIGNER_MNEMONIC", ""),
		JournalDSN:             GetEnvOrDefault("JOURNAL_DSN", ""),
		ReportURL:              GetEnvOrDefault("REPORT_URL", ""),
		ReportAPIKey:           GetEnvOrDefault("REPORT_API_KEY", ""),
		ReportBatchSize:        GetEnvAsPositiveInt("REPORT_BATCH_SIZE", 20),
		ReportInterval:         GetEnvAsDuration("REPORT_INTERVAL", 10*time.Second),
		ReportSign:             GetEnvAsBool("REPORT_SIGN", true),
		RefLinkOrigin:          GetEnvOrDefault("REF_LINK_ORIGIN", "https://getmint.io"),
		OtelEndpoint:           GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		RateLimitRPS:           GetEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:         GetEnvAsInt("RATE_LIMIT_BURST", 20),
		RPCRateLimitRPS:        GetEnvAsFloat("RPC_RATE_LIMIT_RPS", 0),
		EarnedBreakerThreshold: GetEnvAsInt("EARNED_BREAKER_THRESHOLD", 5),
		EarnedBreakerCooldown:  GetEnvAsDuration("EARNED_BREAKER_COOLDOWN", 30*time.Second),
	}
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
	}
	return defaultValue
}

// GetEnvAsPositiveInt is GetEnvAsInt for values that must be above zero
func GetEnvAsPositiveInt(key string, defaultValue int) int {
	if v := GetEnvAsInt(key, defaultValue); v > 0 {
		return v
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a bool with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
