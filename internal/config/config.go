// Package config loads runtime settings for the orgmap command from the
// environment (optionally seeded by a .env file) and validates them.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ammar0144/orgmap/pkg/db"
	"github.com/ammar0144/orgmap/pkg/redis"

	"github.com/go-playground/validator/v10"
	// Loads .env into the process environment before any variable is read
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// EnvPrefix is stripped from every variable. "__" separates nesting levels:
// ORGMAP_DATABASE__DRIVER -> database.driver
const EnvPrefix = "ORGMAP_"

// Config is the root configuration object
type Config struct {
	Database DatabaseConfig `koanf:"database" validate:"required"`
	Redis    RedisConfig    `koanf:"redis"`
	Logging  LoggingConfig  `koanf:"logging" validate:"required"`
}

// DatabaseConfig selects the dialect and connection parameters
type DatabaseConfig struct {
	Driver          string        `koanf:"driver" validate:"required,oneof=sqlite mysql postgres"`
	Path            string        `koanf:"path" validate:"required_if=Driver sqlite"`
	Host            string        `koanf:"host" validate:"required_unless=Driver sqlite"`
	Port            int           `koanf:"port" validate:"omitempty,min=1,max=65535"`
	Name            string        `koanf:"name" validate:"required_unless=Driver sqlite"`
	User            string        `koanf:"user" validate:"required_unless=Driver sqlite"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	TimeZone        string        `koanf:"timezone"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
}

// RedisConfig controls the optional row cache
type RedisConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Host      string        `koanf:"host" validate:"required_if=Enabled true"`
	Port      int           `koanf:"port" validate:"omitempty,min=1,max=65535"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db" validate:"min=0"`
	TTL       time.Duration `koanf:"ttl" validate:"min=0"`
	Addresses string        `koanf:"addresses"` // Comma separated; non-empty enables cluster mode
}

// LoggingConfig holds application and SQL logging settings
type LoggingConfig struct {
	Level              string        `koanf:"level" validate:"required,oneof=debug info warn error silent"`
	Format             string        `koanf:"format" validate:"required,oneof=json console"`
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold"`
	LogQueryParameters bool          `koanf:"log_query_parameters"`
}

// Default returns the configuration used when no variable is set:
// a local sqlite file, no cache, console logging at warn.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       string(db.DriverSQLite),
			Path:         "orgmap.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			QueryTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
			TTL:  time.Hour,
		},
		Logging: LoggingConfig{
			Level:              "warn",
			Format:             "console",
			SlowQueryThreshold: 200 * time.Millisecond,
		},
	}
}

// Override adjusts the loaded configuration before it is validated,
// e.g. to apply command line flags.
type Override func(*Config)

// WithSQLitePath switches the database to the sqlite file at path
func WithSQLitePath(path string) Override {
	return func(c *Config) {
		c.Database.Driver = string(db.DriverSQLite)
		c.Database.Path = path
	}
}

// Load reads ORGMAP_* variables over the defaults, applies overrides and
// validates the result
func Load(overrides ...Override) (*Config, error) {
	return LoadFrom(EnvPrefix, overrides...)
}

// LoadFrom is Load with a custom variable prefix
func LoadFrom(prefix string, overrides ...Override) (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, prefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	for _, override := range overrides {
		override(cfg)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DB converts the database section into a db.Config
func (c *Config) DB() *db.Config {
	d := c.Database
	return &db.Config{
		Driver:          db.Driver(d.Driver),
		Path:            d.Path,
		Host:            d.Host,
		Port:            d.Port,
		Database:        d.Name,
		Username:        d.User,
		Password:        d.Password,
		SSLMode:         d.SSLMode,
		TimeZone:        d.TimeZone,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		QueryTimeout:    d.QueryTimeout,
		Logging: db.LoggingConfig{
			Level:              c.Logging.Level,
			SlowQueryThreshold: c.Logging.SlowQueryThreshold,
			LogQueryParameters: c.Logging.LogQueryParameters,
		},
	}
}

// Cache converts the redis section into a redis.Config, or nil when disabled
func (c *Config) Cache() *redis.Config {
	if !c.Redis.Enabled {
		return nil
	}

	cfg := redis.DefaultConfig()
	cfg.Host = c.Redis.Host
	cfg.Port = c.Redis.Port
	cfg.Password = c.Redis.Password
	cfg.Database = c.Redis.DB
	if c.Redis.TTL > 0 {
		cfg.TTL = c.Redis.TTL
	}

	for _, addr := range strings.Split(c.Redis.Addresses, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			cfg.ClusterAddrs = append(cfg.ClusterAddrs, addr)
		}
	}
	return cfg
}

// NewLogger builds the application logger writing to w
func (c *Config) NewLogger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if c.Logging.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level := zerolog.WarnLevel
	switch c.Logging.Level {
	case "silent":
		level = zerolog.Disabled
	default:
		if parsed, err := zerolog.ParseLevel(c.Logging.Level); err == nil {
			level = parsed
		}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
