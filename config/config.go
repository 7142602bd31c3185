package config

import (
	"os"
	"strconv"
	"time"

	"balaka-tickets/internal/gateway/paychangu"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration (realtime pushes to app clients)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Payment confirmation polling
	PollInterval    time.Duration
	MaxPollAttempts int

	// Purchase session lifetime in Redis
	SessionTTL time.Duration

	// Ticket QR signing key
	QRSigningKey string

	// Payment gateway
	PayChangu paychangu.Config

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Polling: 30 attempts at 2s spacing gives the buyer ~60s to
		// approve the charge on their phone before we give up.
		PollInterval:    getEnvAsDuration("PAYMENT_POLL_INTERVAL", "2s"),
		MaxPollAttempts: getEnvAsInt("PAYMENT_MAX_POLL_ATTEMPTS", 30),

		SessionTTL: getEnvAsDuration("PURCHASE_SESSION_TTL", "10m"),

		QRSigningKey: getEnv("QR_SIGNING_KEY", ""),

		PayChangu: paychangu.Config{
			BaseURL:       getEnv("PAYCHANGU_BASE_URL", "https://api.paychangu.com"),
			SecretKey:     getEnv("PAYCHANGU_SECRET_KEY", ""),
			WebhookSecret: getEnv("PAYCHANGU_WEBHOOK_SECRET", ""),
			CallbackURL:   getEnv("PAYCHANGU_CALLBACK_URL", ""),

			PNSubKey:    getEnv("PAYCHANGU_PN_SUBKEY", ""),
			PNSubSecret: getEnv("PAYCHANGU_PN_SUBSECRET", ""),
			PNUUID:      getEnv("PAYCHANGU_PN_UUID", ""),
			PNChannel:   getEnv("PAYCHANGU_PN_CHANNEL", ""),
		},

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
