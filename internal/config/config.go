package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Schedule ScheduleConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Path string
}

type SecurityConfig struct {
	JWTSecret         string
	SessionDuration   time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	LoginRateLimit    int
	LoginRateWindow   time.Duration
}

// ScheduleConfig tunes dose classification. OnTimeWindow is the grace
// period after the scheduled time within which a take still counts as
// on time. SnoozeDelay is how far a snooze pushes the next prompt.
type ScheduleConfig struct {
	OnTimeWindow       time.Duration
	SnoozeDelay        time.Duration
	SweepEvery         time.Duration
	AuditRetentionDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	sessionDuration, err := time.ParseDuration(getEnv("SESSION_DURATION", "336h"))
	if err != nil {
		sessionDuration = 336 * time.Hour
	}

	rateLimitWindow, err := time.ParseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"))
	if err != nil {
		rateLimitWindow = 1 * time.Minute
	}

	loginRateWindow, err := time.ParseDuration(getEnv("LOGIN_RATE_WINDOW", "15m"))
	if err != nil {
		loginRateWindow = 15 * time.Minute
	}

	onTimeWindow, err := time.ParseDuration(getEnv("ON_TIME_WINDOW", "30m"))
	if err != nil {
		onTimeWindow = 30 * time.Minute
	}

	snoozeDelay, err := time.ParseDuration(getEnv("SNOOZE_DELAY", "10m"))
	if err != nil {
		snoozeDelay = 10 * time.Minute
	}

	sweepEvery, err := time.ParseDuration(getEnv("SWEEP_INTERVAL", "1m"))
	if err != nil {
		sweepEvery = 1 * time.Minute
	}

	rateLimitReqs, _ := strconv.Atoi(getEnv("RATE_LIMIT_REQUESTS", "100"))
	loginRateLimit, _ := strconv.Atoi(getEnv("LOGIN_RATE_LIMIT", "5"))
	auditRetentionDays, _ := strconv.Atoi(getEnv("AUDIT_RETENTION_DAYS", "90"))

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/medtracker.db"),
		},
		Security: SecurityConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			SessionDuration:   sessionDuration,
			RateLimitRequests: rateLimitReqs,
			RateLimitWindow:   rateLimitWindow,
			LoginRateLimit:    loginRateLimit,
			LoginRateWindow:   loginRateWindow,
		},
		Schedule: ScheduleConfig{
			OnTimeWindow:       onTimeWindow,
			SnoozeDelay:        snoozeDelay,
			SweepEvery:         sweepEvery,
			AuditRetentionDays: auditRetentionDays,
		},
	}

	// Validate required fields
	if cfg.Security.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

var ErrMissingJWTSecret = &ConfigError{"JWT_SECRET environment variable is required"}

type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
