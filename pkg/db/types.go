package db

import (
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Driver names the SQL dialect a Manager talks to
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
)

// Config holds database and GORM configuration for every supported dialect
type Config struct {
	Driver Driver `json:"driver" yaml:"driver"`

	// SQLite Settings
	Path string `json:"path" yaml:"path"` // File path or ":memory:"

	// Connection Settings (mysql, postgres)
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Database string `json:"database" yaml:"database"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"` // postgres only: disable, require, verify-full
	TimeZone string `json:"timezone" yaml:"timezone"` // Default: UTC

	// Connection Pool Settings (ignored for sqlite, which always uses one connection)
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// GORM Settings
	SkipDefaultTransaction bool          `json:"skip_default_transaction" yaml:"skip_default_transaction"`
	PrepareStmt            bool          `json:"prepare_stmt" yaml:"prepare_stmt"`
	QueryTimeout           time.Duration `json:"query_timeout" yaml:"query_timeout"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig controls how GORM statements are reported
type LoggingConfig struct {
	Level              string        `json:"level" yaml:"level"` // silent, error, warn, info
	SlowQueryThreshold time.Duration `json:"slow_query_threshold" yaml:"slow_query_threshold"`
	LogQueryParameters bool          `json:"log_query_parameters" yaml:"log_query_parameters"`
}

// Manager owns the single database handle shared by a session
type Manager struct {
	config   *Config
	db       *gorm.DB
	log      zerolog.Logger
	identity string
}

// Option customises a Manager at construction time
type Option func(*Manager)

// WithLogger routes manager and GORM logs to the given logger
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}
