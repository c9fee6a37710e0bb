// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings. APP_ENV defaults to production so an unset
	// environment never enables development-only behavior.
	AppEnv  string `env:"APP_ENV" envDefault:"production"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis). Optional: when empty the identity cache and
	// generation rate limiting are disabled.
	RedisURL string `env:"REDIS_URL"`

	// Identity provider domain used for bearer token introspection
	// (e.g., eralens.eu.auth0.com)
	AuthDomain string `env:"AUTH_DOMAIN,required"`

	// Upstream image-generation API
	GeminiAPIKey  string `env:"GEMINI_API_KEY,required"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`

	// Admin access: comma-separated list of admin emails
	AdminEmails string `env:"ADMIN_EMAILS,required"`

	// Credits granted to an account on first sight
	InitialCredits int `env:"INITIAL_CREDITS" envDefault:"3"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Budget for each identity-provider and upstream model call.
	// The browser client retries with backoff, so a hung call must fail
	// rather than stack retries behind it.
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`

	// Rate limiting for the generation route (per account)
	RateLimitGenerateEnabled bool `env:"RATE_LIMIT_GENERATE_ENABLED" envDefault:"true"`
	RateLimitGenerateRPM     int  `env:"RATE_LIMIT_GENERATE_RPM" envDefault:"10"`
	RateLimitGenerateBurst   int  `env:"RATE_LIMIT_GENERATE_BURST" envDefault:"3"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://eralens.app")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 16MB; bodies carry base64 images)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"16777216"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetAdminEmails parses the comma-separated admin emails into a slice.
func (c *Config) GetAdminEmails() []string {
	return splitAndTrim(c.AdminEmails)
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitAndTrim(c.CORSAllowedOrigins)
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing; the caller must
// treat that as fatal so missing security configuration fails closed.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.InitialCredits < 0 {
		return nil, fmt.Errorf("INITIAL_CREDITS must be non-negative, got %d", cfg.InitialCredits)
	}
	return cfg, nil
}
