// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// AI providers; the active one is selected by AIProvider.
	AIProvider     string // "openai", "gemini", "claude", "mistral"
	OpenAIKey      string
	OpenAIModel    string
	OpenAIImage    string
	OpenAIBaseURL  string
	GeminiKey      string
	GeminiModel    string
	GeminiImage    string
	GeminiBaseURL  string
	ClaudeKey      string
	ClaudeModel    string
	ClaudeBaseURL  string
	MistralKey     string
	MistralModel   string
	MistralBaseURL string

	// S3-compatible object storage for generated images. Empty endpoint
	// disables uploads and images are returned inline as data URIs.
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BucketPublic string
	S3PublicURL    string

	// AI functions endpoint consumed by the gateway client. When empty the
	// in-process functions server is addressed on the listen address.
	FunctionsURL     string
	FunctionsKey     string
	FunctionsTimeout time.Duration
	FunctionsRPS     float64

	// Editing sessions
	SuggestDelay   time.Duration
	SessionIdleTTL time.Duration
	ImageWorkers   int
	ThemeTimeout   time.Duration // whole theme run: brief plus every slide image
}

// LoadDotenv reads a .env file into the process environment if one exists.
// Variables already set are not overridden.
func LoadDotenv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	slog.Debug("loaded environment file", "path", path)
	return nil
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing or malformed.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "pitchdeck"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "pitchdeck"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		AIProvider:     envOrDefault("AI_PROVIDER", "gemini"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    envOrDefault("OPENAI_MODEL", "gpt-4o"),
		OpenAIImage:    envOrDefault("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		OpenAIBaseURL:  envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiImage:    envOrDefault("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:  envOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		ClaudeKey:      os.Getenv("CLAUDE_API_KEY"),
		ClaudeModel:    envOrDefault("CLAUDE_MODEL", "claude-sonnet-4-5"),
		ClaudeBaseURL:  envOrDefault("CLAUDE_BASE_URL", "https://api.anthropic.com"),
		MistralKey:     os.Getenv("MISTRAL_API_KEY"),
		MistralModel:   envOrDefault("MISTRAL_MODEL", "mistral-large-latest"),
		MistralBaseURL: envOrDefault("MISTRAL_BASE_URL", "https://api.mistral.ai"),

		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Region:       envOrDefault("S3_REGION", "fsn1"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3BucketPublic: envOrDefault("S3_BUCKET_PUBLIC", "pitchdeck-public"),
		S3PublicURL:    os.Getenv("S3_PUBLIC_URL"),

		FunctionsURL: os.Getenv("FUNCTIONS_URL"),
		FunctionsKey: envOrDefault("FUNCTIONS_API_KEY", "dev-functions-key"),
	}

	var err error
	if cfg.FunctionsTimeout, err = durationOrDefault("FUNCTIONS_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.SuggestDelay, err = durationOrDefault("SUGGEST_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = durationOrDefault("SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ThemeTimeout, err = durationOrDefault("THEME_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.FunctionsRPS, err = floatOrDefault("FUNCTIONS_RPS", 2); err != nil {
		return nil, err
	}
	if cfg.ImageWorkers, err = intOrDefault("IMAGE_WORKERS", 4); err != nil {
		return nil, err
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.FunctionsKey == "dev-functions-key" {
			return nil, fmt.Errorf("FUNCTIONS_API_KEY must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// WriteTimeout is the HTTP server's default write deadline. It covers one
// AI function call; multi-call endpoints extend their own deadline by
// SlowWriteTimeout.
func (c *Config) WriteTimeout() time.Duration {
	return max(90*time.Second, c.FunctionsTimeout+15*time.Second)
}

// SlowWriteTimeout is the write deadline for endpoints that chain several
// AI calls and saves, such as theme generation.
func (c *Config) SlowWriteTimeout() time.Duration {
	return c.ThemeTimeout + c.FunctionsTimeout
}

// StorageEnabled reports whether generated images should be uploaded to S3.
func (c *Config) StorageEnabled() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func floatOrDefault(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

func intOrDefault(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}
