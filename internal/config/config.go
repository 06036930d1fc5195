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
	LogLevel    string
	CatalogPath string // optional YAML override of the built-in catalog

	Archive ArchiveConfig
	Session SessionConfig
	LLM     LLMConfig
	HTTP    HTTPConfig
}

// ArchiveConfig controls the SQLite transcript archive.
type ArchiveConfig struct {
	Enabled bool
	DBPath  string
}

// SessionConfig bounds the live session registry.
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

// LLMConfig configures the OpenAI-compatible generation backend.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
	Timeout     time.Duration
}

// HTTPConfig holds per-request limits.
type HTTPConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CatalogPath: getEnv("CATALOG_PATH", ""),
		Archive: ArchiveConfig{
			Enabled: getEnvBool("ARCHIVE_ENABLED", true),
			DBPath:  getEnv("DB_PATH", "./data/sessions.db"),
		},
		Session: SessionConfig{
			TTL:           getEnvDuration("SESSION_TTL", 2*time.Hour),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
			MaxSessions:   getEnvInt("MAX_SESSIONS", 1000),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("LLM_API_KEY", ""),
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.cerebras.ai/v1"),
			Model:       getEnv("LLM_MODEL", "llama-3.3-70b"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
			Temperature: float32(getEnvFloat("LLM_TEMPERATURE", 0.7)),
			TopP:        float32(getEnvFloat("LLM_TOP_P", 0.8)),
			Timeout:     getEnvDuration("LLM_TIMEOUT", 90*time.Second),
		},
		HTTP: HTTPConfig{
			RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 1),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 5),
			MaxBodyBytes:   int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 64<<10)),
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
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.Archive.Enabled && c.Archive.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty when the archive is enabled")
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("SESSION_TTL must be >= 0")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("MAX_SESSIONS must be >= 0")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be > 0")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be within [0, 2]")
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		return fmt.Errorf("LLM_TOP_P must be within [0, 1]")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// GenerationEnabled reports whether an API key was configured.
func (c *Config) GenerationEnabled() bool {
	return c.LLM.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
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

// getEnvDuration accepts Go durations ("90s", "2h") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
