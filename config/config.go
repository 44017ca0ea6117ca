package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string // default: 8080

	// Auth
	APISecret string // shared secret expected in X-API-Secret

	// Database
	PostgresDSN string

	// Cache
	RedisAddr string

	// Observability
	OTELExporterType     string // "stdout" or "otlp"
	OTELExporterEndpoint string // default: "localhost:4317"

	// Rate Limiting
	RateLimitRPM int64 // metering requests per user per minute, default: 600

	// Quota ceilings (-1 = unlimited)
	FreeTokenLimit         int64
	FreeMeetingSecondLimit int64
	ProTokenLimit          int64
	ProMeetingSecondLimit  int64

	// Billing period rollover
	RolloverInterval time.Duration // 0 disables the rollover worker
	PeriodLength     time.Duration // default: 720h (30 days)
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		APISecret:            os.Getenv("API_SECRET"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.RateLimitRPM, err = getEnvInt64("RATE_LIMIT_RPM", 600); err != nil {
		return nil, err
	}
	if cfg.FreeTokenLimit, err = getEnvInt64("FREE_TOKEN_LIMIT", 50_000); err != nil {
		return nil, err
	}
	if cfg.FreeMeetingSecondLimit, err = getEnvInt64("FREE_MEETING_SECONDS_LIMIT", 1_800); err != nil {
		return nil, err
	}
	if cfg.ProTokenLimit, err = getEnvInt64("PRO_TOKEN_LIMIT", 2_000_000); err != nil {
		return nil, err
	}
	if cfg.ProMeetingSecondLimit, err = getEnvInt64("PRO_MEETING_SECONDS_LIMIT", 36_000); err != nil {
		return nil, err
	}
	if cfg.RolloverInterval, err = getEnvDuration("ROLLOVER_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.PeriodLength, err = getEnvDuration("PERIOD_LENGTH", 30*24*time.Hour); err != nil {
		return nil, err
	}

	// Validation
	if cfg.APISecret == "" {
		return nil, fmt.Errorf("API_SECRET is required")
	}
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
