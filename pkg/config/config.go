package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Progress source backends
const (
	ProgressSourceHTTP     = "http"
	ProgressSourcePostgres = "postgres"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Strategic plan and review heuristics
	Plan PlanConfig

	// Upstream report service (analyses, approvals, insights)
	ReportAPI ReportAPIConfig

	// Review workflow
	Review ReviewConfig

	// Inbound API rate limiting
	RateLimit RateLimitConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PlanConfig locates the strategic plan and the KRA keyword table
type PlanConfig struct {
	Path         string // JSON or YAML strategic plan
	KeywordsPath string // optional; built-in table when empty
}

// ReportAPIConfig holds the upstream report service configuration
type ReportAPIConfig struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	InsightPerMinute int // shared across replicas through Redis
}

// ReviewConfig holds review session settings
type ReviewConfig struct {
	SessionTTL       time.Duration
	ProgressSource   string // http | postgres
	ProgressCacheTTL time.Duration
	SweepSchedule    string
}

// RateLimitConfig holds per-client inbound rate limits
type RateLimitConfig struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Plan: PlanConfig{
			Path:         getEnv("PLAN_PATH", ""),
			KeywordsPath: getEnv("KEYWORDS_PATH", ""),
		},

		ReportAPI: ReportAPIConfig{
			BaseURL:          getEnv("REPORT_API_BASE_URL", "http://localhost:3000/api"),
			Token:            getEnv("REPORT_API_TOKEN", ""),
			Timeout:          getEnvAsDuration("REPORT_API_TIMEOUT", "30s"),
			InsightPerMinute: getEnvAsInt("INSIGHT_RATE_LIMIT", 20),
		},

		Review: ReviewConfig{
			SessionTTL:       getEnvAsDuration("REVIEW_SESSION_TTL", "2h"),
			ProgressSource:   getEnv("PROGRESS_SOURCE", ProgressSourceHTTP),
			ProgressCacheTTL: getEnvAsDuration("PROGRESS_CACHE_TTL", "1m"),
			SweepSchedule:    getEnv("REVIEW_SWEEP_SCHEDULE", "0 */10 * * * *"),
		},

		RateLimit: RateLimitConfig{
			RPS:     getEnvAsFloat("RATE_LIMIT_RPS", 5),
			Burst:   getEnvAsInt("RATE_LIMIT_BURST", 20),
			IdleTTL: getEnvAsDuration("RATE_LIMIT_IDLE_TTL", "10m"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Plan.Path == "" {
		return fmt.Errorf("PLAN_PATH is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Review.ProgressSource {
	case ProgressSourceHTTP:
	case ProgressSourcePostgres:
		// Progress records live in our own database
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when PROGRESS_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("PROGRESS_SOURCE must be one of: http, postgres")
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}

	return nil
}

// UsesPostgres reports whether progress records are owned by this service
func (c *Config) UsesPostgres() bool {
	return c.Review.ProgressSource == ProgressSourcePostgres
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
