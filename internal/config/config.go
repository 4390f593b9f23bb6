// Package config loads Solvency's runtime configuration: first from
// environment variables (optionally via a .env file), then overridden by
// the settings table once the store is open, matching the two-stage
// loading order aristath-sentinel's config package documents.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/adrianvollmer/solvency/internal/settings"
)

// Config holds application configuration. Settings-table values loaded via
// UpdateFromSettings take precedence over the environment values below.
type Config struct {
	Host           string // SOLVENCY_HOST, default "0.0.0.0"
	Port           int    // SOLVENCY_PORT, default 8080
	DatabaseURL    string // SOLVENCY_DATABASE_URL, default "./solvency.db"
	MigrationsPath string // SOLVENCY_MIGRATIONS_PATH, optional override of the embedded schema dir
	StaticPath     string // SOLVENCY_STATIC_PATH, optional override of the embedded asset dir
	PasswordHash   string // SOLVENCY_PASSWORD_HASH; empty or the magic string disables auth
	DevMode        bool   // DEV_MODE
	LogLevel       string // LOG_LEVEL, default "info"
	AIBatchSize    int    // AI-categorization chunk size, default 5 (settings-overridable)
	AIRateLimitMs  int    // delay between AI-categorization batches, default 500ms (settings-overridable)
	AIProvider     string // AI_PROVIDER, name recorded in api_logs, default "openai-compatible"
	AIBaseURL      string // AI_BASE_URL, e.g. http://localhost:11434/v1 or https://api.openai.com/v1
	AIAPIKey       string // AI_API_KEY; empty for providers that don't require one (e.g. local Ollama)
	AIModel        string // AI_MODEL, default "gpt-4o-mini"
}

// Load reads configuration from the environment (loading a .env file
// first, if present — errors from a missing .env are ignored, matching
// godotenv.Load's documented behavior).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host:           getEnv("SOLVENCY_HOST", "0.0.0.0"),
		Port:           getEnvAsInt("SOLVENCY_PORT", 8080),
		DatabaseURL:    getEnv("SOLVENCY_DATABASE_URL", "./solvency.db"),
		MigrationsPath: getEnv("SOLVENCY_MIGRATIONS_PATH", ""),
		StaticPath:     getEnv("SOLVENCY_STATIC_PATH", ""),
		PasswordHash:   getEnv("SOLVENCY_PASSWORD_HASH", ""),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AIBatchSize:    5,
		AIRateLimitMs:  500,
		AIProvider:     getEnv("AI_PROVIDER", "openai-compatible"),
		AIBaseURL:      getEnv("AI_BASE_URL", "http://localhost:11434/v1"),
		AIAPIKey:       getEnv("AI_API_KEY", ""),
		AIModel:        getEnv("AI_MODEL", "gpt-4o-mini"),
	}

	return cfg, nil
}

// UpdateFromSettings overrides AI-categorization tuning (and, if ever
// rotated through the settings UI, the password hash) from the settings
// table; empty settings-table values keep the environment-derived
// default, matching aristath-sentinel's settings-take-precedence policy.
func (c *Config) UpdateFromSettings(repo *settings.Repository) error {
	if hash, err := repo.Get("password_hash"); err != nil {
		return fmt.Errorf("load password_hash setting: %w", err)
	} else if hash != nil && *hash != "" {
		c.PasswordHash = *hash
	}

	c.AIBatchSize = repo.GetInt("ai_batch_size", c.AIBatchSize)
	c.AIRateLimitMs = repo.GetInt("ai_rate_limit_ms", c.AIRateLimitMs)

	if v, err := repo.Get("ai_provider"); err != nil {
		return fmt.Errorf("load ai_provider setting: %w", err)
	} else if v != nil && *v != "" {
		c.AIProvider = *v
	}
	if v, err := repo.Get("ai_base_url"); err != nil {
		return fmt.Errorf("load ai_base_url setting: %w", err)
	} else if v != nil && *v != "" {
		c.AIBaseURL = *v
	}
	if v, err := repo.Get("ai_api_key"); err != nil {
		return fmt.Errorf("load ai_api_key setting: %w", err)
	} else if v != nil && *v != "" {
		c.AIAPIKey = *v
	}
	if v, err := repo.Get("ai_model"); err != nil {
		return fmt.Errorf("load ai_model setting: %w", err)
	} else if v != nil && *v != "" {
		c.AIModel = *v
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
