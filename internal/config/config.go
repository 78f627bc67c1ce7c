// Package config loads process settings from built-in defaults, an optional
// YAML file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/govalues/money"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Addr              string        `yaml:"addr" envconfig:"ADDR"`
	ReadTimeout       time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" envconfig:"READ_HEADER_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

type ORMConfig struct {
	Dialect  string `yaml:"dialect" envconfig:"DIALECT"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

type AMQPConfig struct {
	URL           string `yaml:"url" envconfig:"URL"`
	Exchange      string `yaml:"exchange" envconfig:"EXCHANGE"`
	RoutingPrefix string `yaml:"routing_prefix" envconfig:"ROUTING_PREFIX"`
}

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageORM      = "orm"
)

type Config struct {
	HTTP        HTTPConfig `yaml:"http" envconfig:"HTTP"`
	Log         LogConfig  `yaml:"log" envconfig:"LOG"`
	Currency    string     `yaml:"currency" envconfig:"CURRENCY"`
	Storage     string     `yaml:"storage" envconfig:"STORAGE"`
	DatabaseURL string     `yaml:"database_url" envconfig:"DATABASE_URL"`
	ORM         ORMConfig  `yaml:"orm" envconfig:"ORM"`
	AMQP        AMQPConfig `yaml:"amqp" envconfig:"AMQP"`
	DevSeed     bool       `yaml:"dev_seed" envconfig:"DEV_SEED"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log:      LogConfig{Level: "info", Format: "json"},
		Currency: "USD",
		Storage:  StorageMemory,
		ORM:      ORMConfig{Dialect: "postgres", LogLevel: "silent"},
		AMQP:     AMQPConfig{Exchange: "bank.operations", RoutingPrefix: "bank.transactions"},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if set),
// then the environment. Environment variables win.
func Load() (Config, error) {
	// .env is optional; a missing file leaves the process environment as is.
	_ = godotenv.Load()
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	// DATABASE_URL alone selects Postgres, matching the earlier env-only setup.
	if cfg.Storage == StorageMemory && cfg.DatabaseURL != "" && os.Getenv("STORAGE") == "" {
		cfg.Storage = StoragePostgres
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if _, err := money.ParseCurr(c.Currency); err != nil {
		return fmt.Errorf("currency %q: %w", c.Currency, err)
	}
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres, StorageORM:
		if c.DatabaseURL == "" {
			return fmt.Errorf("storage %s requires DATABASE_URL", c.Storage)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.Storage == StorageORM {
		switch strings.ToLower(c.ORM.Dialect) {
		case "postgres", "postgresql", "mysql":
		default:
			return fmt.Errorf("unknown orm dialect %q", c.ORM.Dialect)
		}
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		return errors.New("AMQP_EXCHANGE must be set when AMQP_URL is")
	}
	return nil
}

// Curr returns the parsed service currency. Validate has already checked it.
func (c Config) Curr() money.Currency {
	curr, _ := money.ParseCurr(c.Currency)
	return curr
}
