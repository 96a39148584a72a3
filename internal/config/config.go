// Package config loads the client and dev-server configuration from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Config carries everything the binaries need. Fields default to sensible
// development values so `go run` works with an empty environment.
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"Hauswerk Admin"`
	Env     string `env:"ENV" envDefault:"DEV"`

	// Client side.
	PlatformURL    string        `env:"PLATFORM_URL" envDefault:"http://localhost:8080"`
	DataFolder     string        `env:"DATA_FOLDER" envDefault:"./data"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	PollTimeout    time.Duration `env:"POLL_TIMEOUT" envDefault:"120s"`
	ResendCooldown time.Duration `env:"RESEND_COOLDOWN" envDefault:"60s"`

	// Dev server side.
	Port      string `env:"PORT" envDefault:"8080"`
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret"`

	SMTP SMTPConfig
}

// SMTPConfig configures outbound code delivery for the dev server. With an
// empty host, codes are logged instead of mailed.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Account  string `env:"SMTP_ACCOUNT"`
	Password string `env:"SMTP_PASSWORD"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load] env.Parse")
	}
	if cfg.PollInterval <= 0 || cfg.PollInterval >= cfg.PollTimeout {
		return nil, errors.New("[config.Load] POLL_INTERVAL must be positive and smaller than POLL_TIMEOUT")
	}
	return cfg, nil
}

// Addr returns the listen address for the dev server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the configuration targets a development environment.
func (c *Config) IsDev() bool {
	return c.Env == "DEV"
}
