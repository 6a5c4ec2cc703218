package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config carrega a configuração do serviço a partir do ambiente
type Config struct {
	ServiceName      string `env:"SERVICE_NAME" envDefault:"deliveries-service"`
	Port             string `env:"PORT" envDefault:"8083"`
	DatabaseUser     string `env:"DATABASE_USER" envDefault:"root"`
	DatabasePassword string `env:"DATABASE_PASSWORD" envDefault:"pass"`
	DatabaseHost     string `env:"DATABASE_HOST" envDefault:"localhost"`
	DatabasePort     string `env:"DATABASE_PORT" envDefault:"5432"`
	DatabaseName     string `env:"DATABASE_NAME" envDefault:"deliveries_db"`
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// LoadConfig parses environment variables into a Config.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// DatabaseDSN monta a connection string do pgxpool
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&pool_max_conns=25&pool_min_conns=5",
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseName,
	)
}
