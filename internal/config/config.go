package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	ServerPort string

	// Database
	DatabaseType string // sqlite, postgres or mysql
	DatabasePath string
	DatabaseURL  string

	// Accrual
	AccrualTimezone string

	// Identity provider
	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string

	// HTTP
	CORSAllowedOrigins []string
	RateLimitRPS       int
	RateLimitBurst     int
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	SearchLimit        int

	// Logging
	LogLevel  string
	LogFormat string
	Debug     bool

	// Email (SES)
	AWSRegion    string
	SESFromEmail string
	SESFromName  string

	// Events (AMQP)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ServerPort:         getEnv("PORT", "8080"),
		DatabaseType:       strings.ToLower(getEnv("DATABASE_TYPE", "sqlite")),
		DatabasePath:       getEnv("DB_PATH", "./carecoins.db"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		AccrualTimezone:    getEnv("ACCRUAL_TIMEZONE", "UTC"),
		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 20),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		SearchLimit:        getEnvInt("SEARCH_LIMIT", 20),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		Debug:              getEnvBool("DEBUG", false),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:       getEnv("SES_FROM_EMAIL", ""),
		SESFromName:        getEnv("SES_FROM_NAME", "CareCoins"),
		AMQPURL:            getEnv("AMQP_URL", ""),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "carecoins"),
		AMQPQueue:          getEnv("AMQP_QUEUE", "carecoins.events"),
	}
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var problems []string

	switch c.DatabaseType {
	case "sqlite", "sqlite3", "":
		if c.DatabasePath == "" {
			problems = append(problems, "DB_PATH is required for sqlite")
		}
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			problems = append(problems, fmt.Sprintf("DATABASE_URL is required for %s", c.DatabaseType))
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported DATABASE_TYPE %q", c.DatabaseType))
	}

	if c.SupabaseJWTSecret == "" && (c.SupabaseURL == "" || c.SupabaseAnonKey == "") {
		problems = append(problems, "either SUPABASE_JWT_SECRET or SUPABASE_URL and SUPABASE_ANON_KEY must be set")
	}

	if _, err := time.LoadLocation(c.AccrualTimezone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid ACCRUAL_TIMEZONE %q", c.AccrualTimezone))
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		problems = append(problems, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.SearchLimit <= 0 {
		problems = append(problems, "SEARCH_LIMIT must be positive")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the calendar location used for coin accrual
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.AccrualTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load accrual timezone: %w", err)
	}
	return loc, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
