// Package config loads the YAML configuration tree for
// cmd/shopfloor-orchestrator: server listen address, Postgres and Redis
// connection parameters, the occupation lock TTL, and logging options
// (spec.md §10.2). Secrets are overridden from the environment rather than
// stored in the file.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
)

// Config is the root configuration tree.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Occupation OccupationConfig `yaml:"occupation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// PostgresConfig configures the RowStore/EventLog backend.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig configures the LockService backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// OccupationConfig configures OccupationCoordinator.
type OccupationConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// LoggingConfig configures the zap logger built at startup.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config populated with the same defaults a fresh
// deployment would run with absent a YAML override.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "shopfloor",
			Database:        "shopfloor",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Occupation: OccupationConfig{TTL: 4 * time.Hour},
		Logging:    LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads and parses path, overlaying environment-provided secrets, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeValidation, "reading config file %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeValidation, "parsing config file %s", path)
	}

	cfg.LoadSecretsFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSecretsFromEnv overlays password fields from the environment so they
// never need to live in the YAML file on disk.
func (c *Config) LoadSecretsFromEnv() {
	if v := os.Getenv("SHOPFLOOR_PG_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("SHOPFLOOR_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

// Validate fails fast with a descriptive AppError on an unusable config,
// the same shape as the core's domain validation failures.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return apperrors.NewValidationError("server port is required")
	}
	if c.Postgres.Host == "" {
		return apperrors.NewValidationError("postgres host is required")
	}
	if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
		return apperrors.NewValidationError("postgres port must be between 1 and 65535")
	}
	if c.Postgres.User == "" {
		return apperrors.NewValidationError("postgres user is required")
	}
	if c.Postgres.Database == "" {
		return apperrors.NewValidationError("postgres database name is required")
	}
	if c.Postgres.MaxOpenConns <= 0 {
		return apperrors.NewValidationError("postgres max open connections must be greater than 0")
	}
	if c.Postgres.MaxIdleConns < 0 {
		return apperrors.NewValidationError("postgres max idle connections must be non-negative")
	}
	if c.Redis.Addr == "" {
		return apperrors.NewValidationError("redis addr is required")
	}
	if c.Occupation.TTL <= 0 {
		return apperrors.NewValidationError("occupation ttl must be positive")
	}
	return nil
}
