// internal/config/config.go
package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBUser     string `env:"DB_USER" envDefault:"user"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"pass"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBName     string `env:"DB_NAME" envDefault:"funilzap"`

	// AMQPURL empty means the server falls back to the in-process queue.
	AMQPURL string `env:"AMQP_URL"`

	WhatsAppAPIURL string `env:"WHATSAPP_API_URL"`
	WhatsAppToken  string `env:"WHATSAPP_API_TOKEN"`

	// CompanyName fills the [NOME_MINHA_EMPRESA] template variable.
	CompanyName string `env:"COMPANY_NAME"`

	DefaultDelayMs      int `env:"DEFAULT_DELAY_MS" envDefault:"1200"`
	DefaultMaxPerMinute int `env:"DEFAULT_MAX_PER_MINUTE" envDefault:"30"`
	DefaultMaxPerHour   int `env:"DEFAULT_MAX_PER_HOUR" envDefault:"900"`
}

// Load reads .env when present and parses the environment into a Config.
func Load() (*Config, error) {
	// Missing .env is fine, OS environment still applies.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}
