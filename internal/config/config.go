package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string `env:"PORT" envDefault:"3333"`

	// DatabaseURL selects Postgres. When empty, DBPath selects SQLite, and
	// when both are empty everything lives in memory.
	DatabaseURL string `env:"DATABASE_URL"`
	DBPath      string `env:"DB_PATH"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"5"`

	Timezone string `env:"TIMEZONE" envDefault:"Local"`

	MetricsUser    string `env:"METRICS_USER"`
	MetricsPass    string `env:"METRICS_PASS"`
	PprofSecret    string `env:"PPROF_SECRET"`
	ClerkSecretKey string `env:"CLERK_SECRET_KEY"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"30"`

	ReminderInterval time.Duration `env:"REMINDER_INTERVAL" envDefault:"1m"`
	ReminderWindow   time.Duration `env:"REMINDER_WINDOW" envDefault:"15m"`
	RolloverInterval time.Duration `env:"ROLLOVER_INTERVAL" envDefault:"1h"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := &Config{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Location is the zone calendar days are computed in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) AuthEnabled() bool {
	return c.ClerkSecretKey != ""
}
