package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else;
// all values are fixed for the process lifetime.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Twitter TwitterConfig
	Binance BinanceConfig

	// Tracker
	Tracker TrackerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// TwitterConfig holds the settings for the profile fetch client
type TwitterConfig struct {
	BaseURL        string // profile pages, parsed for bio/verified
	SyndicationURL string // public JSON endpoints for counts and timelines
	UserAgent      string
	RequestsPerSec float64 // local rate limit for profile fetches
}

// BinanceConfig holds the market data API configuration
type BinanceConfig struct {
	BaseURL string
	Enabled bool
}

// TrackerConfig holds the collection loop and scoring configuration
type TrackerConfig struct {
	Accounts         []string      // tracked usernames
	ReferenceAccount string        // score denominator; empty = largest-followers account
	TickInterval     time.Duration // collect/compute/publish cadence
	FetchTimeout     time.Duration // per-account fetch deadline
	RetentionMaxAge  time.Duration // snapshot history retention

	// Growth classification thresholds (percent)
	SpikeThreshold float64 // 5m growth at or above this -> Spiking
	FastThreshold  float64 // 1h growth at or above this -> Fast Growing
	AlertThreshold float64 // 5m growth above this always alerts

	// Score weights, must sum to 1
	FollowerWeight   float64
	EngagementWeight float64

	ExportDir string // leaderboard JSON export target
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "pulseboard"),
			User:            getEnv("DB_USER", "pulseboard"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
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

		// External APIs
		Twitter: TwitterConfig{
			BaseURL:        getEnv("TWITTER_BASE_URL", "https://twitter.com"),
			SyndicationURL: getEnv("TWITTER_SYNDICATION_URL", "https://cdn.syndication.twimg.com"),
			UserAgent:      getEnv("TWITTER_USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"),
			RequestsPerSec: getEnvAsFloat("TWITTER_REQUESTS_PER_SEC", 2.0),
		},

		Binance: BinanceConfig{
			// Host only; the client appends /api/v3 itself
			BaseURL: getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
			Enabled: getEnvAsBool("BINANCE_ENABLED", true),
		},

		// Tracker
		Tracker: TrackerConfig{
			Accounts:         getEnvAsSlice("TRACKED_ACCOUNTS", defaultAccounts),
			ReferenceAccount: getEnv("REFERENCE_ACCOUNT", ""),
			TickInterval:     getEnvAsDuration("TICK_INTERVAL", "300s"),
			FetchTimeout:     getEnvAsDuration("FETCH_TIMEOUT", "30s"),
			RetentionMaxAge:  getEnvAsDuration("RETENTION_MAX_AGE", "48h"),
			SpikeThreshold:   getEnvAsFloat("SPIKE_THRESHOLD", 2.0),
			FastThreshold:    getEnvAsFloat("FAST_THRESHOLD", 5.0),
			AlertThreshold:   getEnvAsFloat("ALERT_THRESHOLD", 10.0),
			FollowerWeight:   getEnvAsFloat("SCORE_FOLLOWER_WEIGHT", 0.5),
			EngagementWeight: getEnvAsFloat("SCORE_ENGAGEMENT_WEIGHT", 0.5),
			ExportDir:        getEnv("EXPORT_DIR", "data"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// defaultAccounts is the tracked set used when TRACKED_ACCOUNTS is unset
var defaultAccounts = []string{
	"ethereum",
	"bitcoin",
	"binance",
	"dogecoin",
	"cardano",
	"solana",
	"ripple",
	"polkadot",
	"avalancheavax",
	"chainlink",
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if len(c.Tracker.Accounts) == 0 {
		return fmt.Errorf("TRACKED_ACCOUNTS must not be empty")
	}

	if c.Tracker.TickInterval < time.Second {
		return fmt.Errorf("TICK_INTERVAL must be at least 1s")
	}

	// Retention must cover the largest growth horizon
	if c.Tracker.RetentionMaxAge < 24*time.Hour {
		return fmt.Errorf("RETENTION_MAX_AGE must be at least 24h")
	}

	if sum := c.Tracker.FollowerWeight + c.Tracker.EngagementWeight; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("score weights must sum to 1, got %.4f", sum)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
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
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}

	if len(values) == 0 {
		return defaultValue
	}

	return values
}
