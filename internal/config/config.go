// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development" validate:"oneof=development staging production test"`
	AppPort int    `env:"APP_PORT" envDefault:"8080" validate:"min=1,max=65535"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// Cache and cleanup queue (Redis)
	RedisURL string `env:"REDIS_URL,required" validate:"required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Media store. Files under UploadDir are served publicly at UploadURLPrefix.
	UploadDir       string `env:"UPLOAD_DIR" envDefault:"public/uploads" validate:"required"`
	UploadURLPrefix string `env:"UPLOAD_URL_PREFIX" envDefault:"/uploads/" validate:"startswith=/,endswith=/"`

	// Request body limits in bytes
	MaxUploadSize   int64 `env:"MAX_UPLOAD_SIZE" envDefault:"52428800" validate:"gt=0"`
	MaxJSONBodySize int64 `env:"MAX_JSON_BODY_SIZE" envDefault:"1048576" validate:"gt=0"`

	// Sessions
	SessionCacheTTL time.Duration `env:"SESSION_CACHE_TTL" envDefault:"5m"`

	// Per-user rate limiting
	RateLimitEnabled   bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitPerMinute int  `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120" validate:"gte=0"`
	RateLimitBurst     int  `env:"RATE_LIMIT_BURST" envDefault:"20" validate:"gte=0"`

	// Per-IP rate limiting in front of authentication
	RateLimitIPPerSecond int `env:"RATE_LIMIT_IP_PER_SECOND" envDefault:"20" validate:"gte=0"`
	RateLimitIPBurst     int `env:"RATE_LIMIT_IP_BURST" envDefault:"40" validate:"gte=0"`

	// Media cleanup retry queue
	CleanupEnabled      bool          `env:"CLEANUP_ENABLED" envDefault:"true"`
	CleanupPollInterval time.Duration `env:"CLEANUP_POLL_INTERVAL" envDefault:"30s"`
	CleanupBatchSize    int           `env:"CLEANUP_BATCH_SIZE" envDefault:"50" validate:"gt=0"`
	CleanupMaxAttempts  int           `env:"CLEANUP_MAX_ATTEMPTS" envDefault:"8" validate:"gt=0"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Metrics
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing or a value is out of range.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints that env tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
