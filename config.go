package tipy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds what is needed to open a DB.
type Config struct {
	Driver        string        `mapstructure:"driver"`
	DSN           string        `mapstructure:"dsn"`
	LogLevel      string        `mapstructure:"log_level"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	StmtCacheSize int           `mapstructure:"stmt_cache_size"`
}

// LoadConfig reads tipy.yaml from the given directories (the working
// directory when none are given). Every key can be overridden through a
// TIPY_ environment variable, e.g. TIPY_DSN. A missing file is not an error.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("driver", "sqlite3")
	v.SetDefault("dsn", "file::memory:?cache=shared")
	v.SetDefault("log_level", "")
	v.SetDefault("slow_threshold", 200*time.Millisecond)
	v.SetDefault("stmt_cache_size", 0)

	v.SetConfigName("tipy")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("tipy")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("tipy: failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("tipy: failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Driver {
	case "mysql", "postgres", "pgx", "sqlite3":
	default:
		return fmt.Errorf("tipy: unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("tipy: dsn is required")
	}
	if c.StmtCacheSize < 0 {
		return fmt.Errorf("tipy: stmt_cache_size must not be negative, got %d", c.StmtCacheSize)
	}
	return nil
}

// OpenConfig opens a DB as described by cfg, logging through a zap logger
// at cfg.LogLevel.
func OpenConfig(cfg *Config, opts ...Option) (*DB, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	base := []Option{WithLogger(logger), WithSlowThreshold(cfg.SlowThreshold)}
	if cfg.StmtCacheSize > 0 {
		base = append(base, WithStmtCache(cfg.StmtCacheSize))
	}
	return Open(cfg.Driver, cfg.DSN, append(base, opts...)...)
}
