// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Scoring settings
	RuleScoreWeight float64 // weight of the rule score in the combined total
	AIScoreWeight   float64 // weight of the AI score in the combined total
	AlertThreshold  float64 // total score at or above which an alert is created
	VelocityWindow  time.Duration

	// AI scorer settings
	GeminiAPIKey    string // Required for live AI scoring; rule-only mode if not set
	GeminiModel     string
	AIScorerTimeout time.Duration

	// Context signals
	FlaggedMerchants []string // merchants treated as high risk by the merchant rule

	// Email notifications
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	SenderEmail string

	// Observability
	OTLPEndpoint string

	// Security
	RateLimitRPM int
	AdminSecret  string // Admin API secret for rule management
}

// Defaults mirror the reference scoring policy.
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultRuleScoreWeight = 0.4
	DefaultAIScoreWeight   = 0.6
	DefaultAlertThreshold  = 0.5
	DefaultVelocityWindow  = 60 * time.Minute
	DefaultGeminiModel     = "gemini-2.0-flash"
	DefaultAIScorerTimeout = 5 * time.Second
	DefaultRateLimit       = 120
	DefaultSenderEmail     = "alerts@fraudguard.dev"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RuleScoreWeight:  getEnvFloat("RULE_SCORE_WEIGHT", DefaultRuleScoreWeight),
		AIScoreWeight:    getEnvFloat("AI_SCORE_WEIGHT", DefaultAIScoreWeight),
		AlertThreshold:   getEnvFloat("ALERT_THRESHOLD", DefaultAlertThreshold),
		VelocityWindow:   getEnvDuration("VELOCITY_WINDOW", DefaultVelocityWindow),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"), // Optional, rule-only scoring if not set
		GeminiModel:      getEnv("GEMINI_MODEL", DefaultGeminiModel),
		AIScorerTimeout:  getEnvDuration("AI_SCORER_TIMEOUT", DefaultAIScorerTimeout),
		FlaggedMerchants: getEnvList("FLAGGED_MERCHANTS"),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         int(getEnvInt64("SMTP_PORT", 587)),
		SMTPUser:         os.Getenv("SMTP_USER"),
		SMTPPass:         os.Getenv("SMTP_PASS"),
		SenderEmail:      getEnv("SENDER_EMAIL", DefaultSenderEmail),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPM:     int(getEnvInt64("RATE_LIMIT_RPM", int64(DefaultRateLimit))),
		AdminSecret:      os.Getenv("ADMIN_SECRET"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.RuleScoreWeight < 0 || c.RuleScoreWeight > 1 {
		return fmt.Errorf("RULE_SCORE_WEIGHT must be in [0,1], got %v", c.RuleScoreWeight)
	}
	if c.AIScoreWeight < 0 || c.AIScoreWeight > 1 {
		return fmt.Errorf("AI_SCORE_WEIGHT must be in [0,1], got %v", c.AIScoreWeight)
	}
	if c.AlertThreshold < 0 || c.AlertThreshold > 1 {
		return fmt.Errorf("ALERT_THRESHOLD must be in [0,1], got %v", c.AlertThreshold)
	}
	if c.VelocityWindow <= 0 {
		return fmt.Errorf("VELOCITY_WINDOW must be positive, got %v", c.VelocityWindow)
	}
	if c.AIScorerTimeout <= 0 {
		return fmt.Errorf("AI_SCORER_TIMEOUT must be positive, got %v", c.AIScorerTimeout)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// EmailMockMode reports whether outbound email is logged instead of sent.
func (c *Config) EmailMockMode() bool {
	return c.SMTPHost == ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
