// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// Oracle settings for the hosted completion API.
	Oracle OracleConfig

	// Relay settings for the outbound lead submission sink.
	Relay RelayConfig

	// SupportEmail is the human escape hatch shown in fallback messages.
	SupportEmail string

	// ChatSessionTTL bounds how long an idle conversation survives
	// before the sweeper discards it.
	ChatSessionTTL time.Duration

	// IdleNudgeDelay is the wall-clock inactivity before the engine
	// offers a formal inquiry.
	IdleNudgeDelay time.Duration

	RateLimit RateLimitConfig
}

// OracleConfig controls the completion-API client.
type OracleConfig struct {
	APIKey      string
	BaseURL     string // empty means the hosted API
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// RelayConfig controls the email-relay submission sink.
type RelayConfig struct {
	EndpointURL string
	Subject     string
	RedirectURL string
	Timeout     time.Duration
}

// RateLimitConfig controls per-user chat throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/siteline.db"),
		Oracle: OracleConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("ORACLE_BASE_URL", ""),
			Model:       getEnv("ORACLE_MODEL", "gpt-4o-mini"),
			Temperature: getEnvFloat("ORACLE_TEMPERATURE", 0.7),
			MaxTokens:   getEnvInt("ORACLE_MAX_TOKENS", 220),
			Timeout:     getEnvDuration("ORACLE_TIMEOUT", 30*time.Second),
		},
		Relay: RelayConfig{
			EndpointURL: getEnv("FORM_ENDPOINT_URL", ""),
			Subject:     getEnv("FORM_SUBJECT", "New inquiry from the website chat"),
			RedirectURL: getEnv("FORM_REDIRECT_URL", ""),
			Timeout:     getEnvDuration("FORM_TIMEOUT", 10*time.Second),
		},
		SupportEmail:   getEnv("SUPPORT_EMAIL", "hello@luminova.studio"),
		ChatSessionTTL: getEnvDuration("CHAT_SESSION_TTL", 24*time.Hour),
		IdleNudgeDelay: getEnvDuration("IDLE_NUDGE_DELAY", 60*time.Second),
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SupportEmail == "" {
		return fmt.Errorf("SUPPORT_EMAIL cannot be empty")
	}
	if c.Oracle.MaxTokens <= 0 {
		return fmt.Errorf("ORACLE_MAX_TOKENS must be > 0")
	}
	if c.Oracle.Temperature < 0 || c.Oracle.Temperature > 2 {
		return fmt.Errorf("ORACLE_TEMPERATURE must be in [0, 2]")
	}
	if c.ChatSessionTTL <= 0 {
		return fmt.Errorf("CHAT_SESSION_TTL must be > 0")
	}
	if c.IdleNudgeDelay <= 0 {
		return fmt.Errorf("IDLE_NUDGE_DELAY must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
