// Package config loads process configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// BaseConfig holds fields shared by every Dark Tower service. Each service
// embeds it and adds its own fields.
type BaseConfig struct {
	Mode string `env:"APP_MODE" envDefault:"api"`

	Host string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"APP_PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"postgres://localhost:5432/darktower?sslmode=disable"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	OTLPEndpoint string `env:"OTEL_ENDPOINT"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	JWTClockSkewSeconds int `env:"JWT_CLOCK_SKEW_SECONDS" envDefault:"300"`
}

// Load reads configuration from environment variables into a struct of type
// T. T should embed BaseConfig and add service-specific fields.
func Load[T any]() (*T, error) {
	cfg := new(T)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *BaseConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
