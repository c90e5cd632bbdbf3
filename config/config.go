// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration. Every field maps 1:1 to an env var.
type Config struct {
	// Server
	Port        int    `mapstructure:"PORT"`
	Env         string `mapstructure:"APP_ENV"` // development | production
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Database
	DatabasePath string `mapstructure:"DATABASE_PATH"`

	// Auth
	JWTSecret          string `mapstructure:"JWT_SECRET"`
	JWTExpirationHours int    `mapstructure:"JWT_EXPIRATION_HOURS"`

	// Business
	Timezone                 string `mapstructure:"TIMEZONE"`
	AutoCloseEnabled         bool   `mapstructure:"AUTOCLOSE_ENABLED"`
	AutoCloseIntervalMinutes int    `mapstructure:"AUTOCLOSE_INTERVAL_MINUTES"`
}

const devSecret = "lavadero-dev-secret"

// Load reads configuration from environment variables. Outside production a
// .env file in the working directory overrides the process environment.
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// Missing file is fine
		_ = godotenv.Overload(".env")
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_PATH", "lavadero.db")
	v.SetDefault("JWT_SECRET", devSecret)
	v.SetDefault("JWT_EXPIRATION_HOURS", 12)
	v.SetDefault("TIMEZONE", "America/Guatemala")
	v.SetDefault("AUTOCLOSE_ENABLED", true)
	v.SetDefault("AUTOCLOSE_INTERVAL_MINUTES", 30)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.IsProduction() && c.JWTSecret == devSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.JWTExpirationHours <= 0 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be positive, got %d", c.JWTExpirationHours)
	}
	if c.AutoCloseIntervalMinutes <= 0 {
		return fmt.Errorf("AUTOCLOSE_INTERVAL_MINUTES must be positive, got %d", c.AutoCloseIntervalMinutes)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// Location is the business timezone used for date keys and day ranges.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpirationHours) * time.Hour
}

func (c *Config) AutoCloseInterval() time.Duration {
	return time.Duration(c.AutoCloseIntervalMinutes) * time.Minute
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Level parses LOG_LEVEL, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
