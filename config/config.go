package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, parsed from the environment.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DBHost string `env:"DB_HOST" envDefault:"localhost"`
	DBUser string `env:"DB_USER" envDefault:"postgres"`
	DBPass string `env:"DB_PASS" envDefault:"postgres"`
	DBName string `env:"DB_NAME" envDefault:"studentos"`
	DBPort string `env:"DB_PORT" envDefault:"5432"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"your-secret-key"`

	// Number of messages returned when a client opens a room.
	MessageHistoryLimit int `env:"MESSAGE_HISTORY_LIMIT" envDefault:"50"`

	// Token bucket applied to each sender on the websocket send path.
	MessageRate  float64 `env:"MESSAGE_RATE" envDefault:"5"`
	MessageBurst int     `env:"MESSAGE_BURST" envDefault:"10"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// DSN builds the Postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort)
}
