// Package config loads process-wide configuration from the
// environment, optionally merged with a TOML file, and supports
// hot-reloading the file for provider key rotation.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

// Config holds the daemon configuration.
type Config struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	AnthropicAPIKey string `toml:"anthropic_api_key"`
	OpenAIAPIKey    string `toml:"openai_api_key"`
	OpenCodeAPIKey  string `toml:"opencode_api_key"`
	OpenCodeBaseURL string `toml:"opencode_base_url"`

	ReviewTTLSecs       int    `toml:"review_ttl_secs"`
	MaxConcurrentChecks int    `toml:"max_concurrent_checks"`
	ModelTimeoutSecs    int    `toml:"model_timeout_secs"`
	LogLevel            string `toml:"log_level"`

	Grade types.GradeConfig `toml:"grade"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Host:                "0.0.0.0",
		Port:                8080,
		ReviewTTLSecs:       3600,
		MaxConcurrentChecks: 4,
		ModelTimeoutSecs:    120,
		LogLevel:            "info",
		Grade:               types.DefaultGradeConfig(),
	}
}

// Load reads configuration from the environment on top of defaults.
func Load() (*Config, error) {
	cfg := Default()

	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = port
	}

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenCodeAPIKey = os.Getenv("OPENCODE_API_KEY")
	cfg.OpenCodeBaseURL = os.Getenv("OPENCODE_BASE_URL")

	cfg.ReviewTTLSecs = envInt("REVIEW_TTL_SECS", cfg.ReviewTTLSecs)
	cfg.MaxConcurrentChecks = envInt("MAX_CONCURRENT_CHECKS", cfg.MaxConcurrentChecks)
	cfg.ModelTimeoutSecs = envInt("MODEL_TIMEOUT_SECS", cfg.ModelTimeoutSecs)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// LoadFile reads configuration from the environment, then merges the
// TOML file at path on top. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// Addr returns the transport bind address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
