package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite database file (default: ./bridge.db)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	CleanupInterval time.Duration // Cleanup sweep interval (default: 24h)
	SessionTTL      time.Duration // Age after which pending sessions expire (default: 720h)

	// Remote financing API
	AvvanceBaseURL       string
	AvvanceAuthURL       string
	AvvancePartnerID     string
	AvvanceMerchantHash  string
	AvvanceEnvironment   string // production or sandbox (default: sandbox)
	RoutingKeyProduction string
	RoutingKeySandbox    string
	AvvanceClientID      string
	AvvanceClientSecret  string

	// Storefront order API the bridge calls back into
	OrdersBaseURL string

	// Inbound credentials
	WebhookUsername  string
	WebhookPassword  string
	OperatorUsername string
	OperatorPassword string

	PollTokenSecret string        // Required: HMAC secret for poll tokens
	PollTokenTTL    time.Duration // Poll token lifetime (default: 1h)
}

func LoadConfig() Config {
	return Config{
		DatabaseFile: getEnvOrDefault("BRIDGE_DATABASE_FILE", "bridge.db"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		CleanupInterval: getEnvDurationOrDefault("CLEANUP_INTERVAL", 24*time.Hour),
		SessionTTL:      getEnvDurationOrDefault("SESSION_TTL", 30*24*time.Hour),

		AvvanceBaseURL:       os.Getenv("AVVANCE_BASE_URL"),
		AvvanceAuthURL:       os.Getenv("AVVANCE_AUTH_URL"),
		AvvancePartnerID:     os.Getenv("AVVANCE_PARTNER_ID"),
		AvvanceMerchantHash:  os.Getenv("AVVANCE_MERCHANT_HASH"),
		AvvanceEnvironment:   getEnvOrDefault("AVVANCE_ENVIRONMENT", "sandbox"),
		RoutingKeyProduction: os.Getenv("AVVANCE_ROUTING_KEY_PRODUCTION"),
		RoutingKeySandbox:    os.Getenv("AVVANCE_ROUTING_KEY_SANDBOX"),
		AvvanceClientID:      os.Getenv("AVVANCE_CLIENT_ID"),
		AvvanceClientSecret:  os.Getenv("AVVANCE_CLIENT_SECRET"),

		OrdersBaseURL: os.Getenv("ORDERS_BASE_URL"),

		WebhookUsername:  os.Getenv("WEBHOOK_USERNAME"),
		WebhookPassword:  os.Getenv("WEBHOOK_PASSWORD"),
		OperatorUsername: os.Getenv("OPERATOR_USERNAME"),
		OperatorPassword: os.Getenv("OPERATOR_PASSWORD"),

		PollTokenSecret: os.Getenv("POLL_TOKEN_SECRET"),
		PollTokenTTL:    getEnvDurationOrDefault("POLL_TOKEN_TTL", time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
