package config

import (
	"os"
	"strconv"
	"time"
)

// Tables names every DynamoDB table the service uses.
type Tables struct {
	Products       string
	Orders         string
	OrdersByUser   string // GSI on orders: user_id + created_at
	Idempotency    string
	CustomRequests string
	RequestsByUser string // GSI on custom_requests: user_id + created_at
	Counters       string
}

// Config is the process configuration, read once at startup.
type Config struct {
	Addr             string
	RunLocal         bool
	LogLevel         string
	JWTSecret        string
	Tables           Tables
	QueueURL         string
	MetricsNamespace string
	IdempotencyTTL   time.Duration
}

// FromEnv populates a Config using defaults that can be overridden via environment variables.
func FromEnv() Config {
	return Config{
		Addr:      getEnv("HTTP_ADDR", ":8080"),
		RunLocal:  os.Getenv("RUN_LOCAL") == "true",
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		Tables: Tables{
			Products:       getEnv("PRODUCTS_TABLE", "products"),
			Orders:         getEnv("ORDERS_TABLE", "orders"),
			OrdersByUser:   getEnv("ORDERS_USER_INDEX", "user_id-created_at-index"),
			Idempotency:    getEnv("IDEMPOTENCY_TABLE", "idempotency"),
			CustomRequests: getEnv("CUSTOM_REQUESTS_TABLE", "custom_requests"),
			RequestsByUser: getEnv("CUSTOM_REQUESTS_USER_INDEX", "user_id-created_at-index"),
			Counters:       getEnv("COUNTERS_TABLE", "counters"),
		},
		QueueURL:         os.Getenv("ORDERS_QUEUE_URL"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "Storefront/Orders"),
		IdempotencyTTL:   getDuration("IDEMPOTENCY_TTL", 48*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getDuration accepts Go durations ("36h") or a bare number of hours.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if h, err := strconv.Atoi(raw); err == nil && h > 0 {
		return time.Duration(h) * time.Hour
	}
	return fallback
}
