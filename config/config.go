package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	DefaultTimeoutSeconds  int `env:"DEFAULT_TIMEOUT_SECONDS" envDefault:"30" validate:"min=1"`
	MaxTimeoutSeconds      int `env:"MAX_TIMEOUT_SECONDS" envDefault:"300" validate:"min=1"`
	MaxRetries             int `env:"MAX_RETRIES" envDefault:"3" validate:"min=0,max=20"`
	RetryDelaySeconds      int `env:"RETRY_DELAY_SECONDS" envDefault:"1" validate:"min=1"`
	MaxConcurrentJobs      int `env:"MAX_CONCURRENT_JOBS" envDefault:"100" validate:"min=1,max=10000"`
	JobMisfireGraceSeconds int `env:"JOB_MISFIRE_GRACE_SECONDS" envDefault:"60" validate:"min=0"`
	Timezone               string `env:"TIMEZONE" envDefault:"Asia/Kolkata" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
