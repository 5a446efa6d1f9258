// Package config loads the storefront client's settings from defaults, an
// optional YAML file and HENDRIX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"gofalre.io/hendrix/api"
	"gofalre.io/hendrix/payment"
)

const EnvPrefix = "HENDRIX"

const (
	DriverBadger   = "badger"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	FormatProduction  = "production"
	FormatDevelopment = "development"
)

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Log      LogConfig      `mapstructure:"log"`
	Payment  PaymentConfig  `mapstructure:"payment"`
}

type APIConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	BadgerPath string `mapstructure:"badger_path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type PostgresConfig struct {
	DSN       string `mapstructure:"dsn"`
	Namespace string `mapstructure:"namespace"`
}

// NATSConfig enables the payment event feed when URL is set.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Workers int    `mapstructure:"workers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PaymentConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialDelay    time.Duration `mapstructure:"initial_delay"`
	CompletionDelay time.Duration `mapstructure:"completion_delay"`
	FastInterval    time.Duration `mapstructure:"fast_interval"`
	FastAttempts    int           `mapstructure:"fast_attempts"`
}

// SetDefaults registers every key so environment variables can override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout", 8*time.Second)
	v.SetDefault("api.breaker_threshold", 5)
	v.SetDefault("api.breaker_cooldown", 30*time.Second)

	v.SetDefault("storage.driver", DriverBadger)
	v.SetDefault("storage.badger_path", defaultBadgerPath())

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "hendrix")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.namespace", "default")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.workers", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", FormatProduction)

	v.SetDefault("payment.max_attempts", payment.DefaultMaxAttempts)
	v.SetDefault("payment.initial_delay", payment.DefaultInitialDelay)
	v.SetDefault("payment.completion_delay", payment.DefaultCompletionDelay)
	v.SetDefault("payment.fast_interval", payment.DefaultFastInterval)
	v.SetDefault("payment.fast_attempts", payment.DefaultFastAttempts)
}

// Load applies defaults and environment overrides to v, reads the config file
// set with v.SetConfigFile if any, and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}

	switch c.Storage.Driver {
	case DriverBadger, DriverMemory:
	case DriverRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis driver"))
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != FormatProduction && c.Log.Format != FormatDevelopment {
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if c.Payment.MaxAttempts <= 0 {
		errs = append(errs, errors.New("payment.max_attempts must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c APIConfig) Client() api.Config {
	return api.Config{
		BaseURL:          c.BaseURL,
		Timeout:          c.Timeout,
		BreakerThreshold: c.BreakerThreshold,
		BreakerCooldown:  c.BreakerCooldown,
	}
}

func (c PaymentConfig) Poller() payment.Config {
	return payment.Config{
		MaxAttempts:     c.MaxAttempts,
		InitialDelay:    c.InitialDelay,
		CompletionDelay: c.CompletionDelay,
		FastInterval:    c.FastInterval,
		FastAttempts:    c.FastAttempts,
	}
}

// NewLogger builds a JSON (production) or console (development) logger that
// writes to stderr, keeping stdout for command output.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == FormatDevelopment {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}

func defaultBadgerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hendrix"
	}
	return filepath.Join(home, ".hendrix")
}
