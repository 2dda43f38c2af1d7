// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	pkgerrors "github.com/pkg/errors"
)

// Config holds every runtime setting. Fields are populated from
// CARSTOCK_-prefixed environment variables.
type Config struct {
	// DBPath is the sqlite database file. Empty selects the in-memory
	// repositories, which lose all state on shutdown.
	DBPath string `envconfig:"DB_PATH" default:"carstock.db"`

	ReservationTTL     time.Duration `envconfig:"RESERVATION_TTL" default:"15m"`
	ExpirationInterval time.Duration `envconfig:"EXPIRATION_INTERVAL" default:"30s"`
	MetricsInterval    time.Duration `envconfig:"METRICS_INTERVAL" default:"1h"`
	JobBudget          time.Duration `envconfig:"JOB_BUDGET" default:"25s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CARSTOCK", &cfg); err != nil {
		return nil, pkgerrors.Wrap(err, "reading environment")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ReservationTTL <= 0 {
		return pkgerrors.New("reservation TTL must be positive")
	}
	if c.ExpirationInterval <= 0 {
		return pkgerrors.New("expiration interval must be positive")
	}
	if c.MetricsInterval <= 0 {
		return pkgerrors.New("metrics interval must be positive")
	}
	return nil
}
