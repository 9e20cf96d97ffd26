package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// NewSQLiteManager opens a sqlite database with default settings.
// Pass MemoryPath for a throwaway in-memory database.
func NewSQLiteManager(path string, opts ...Option) (*Manager, error) {
	return NewManager(DefaultSQLiteConfig(path), opts...)
}

// NewManager creates a new database manager instance with full configuration
func NewManager(config *Config, opts ...Option) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m := &Manager{
		config: config,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	gormConfig := &gorm.Config{
		SkipDefaultTransaction: config.SkipDefaultTransaction,
		PrepareStmt:            config.PrepareStmt,
		Logger:                 NewGormLogger(m.log, config.Logging),
	}

	db, err := gorm.Open(config.Dialector(), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if config.Driver == DriverSQLite {
		// One connection: an in-memory database lives and dies with its connection
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)

		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	m.db = db
	m.identity = databaseIdentity(config, db)
	m.log.Debug().Str("driver", string(config.Driver)).Msg("database connection opened")
	return m, nil
}

// DB returns the GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Driver reports the dialect in use
func (m *Manager) Driver() Driver {
	return m.config.Driver
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err != nil {
			return err
		}
		m.log.Debug().Msg("database connection closed")
		return sqlDB.Close()
	}
	return nil
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Ping tests the database connection
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns database connection statistics
func (m *Manager) Stats() (sql.DBStats, error) {
	sqlDB, err := m.db.DB()
	if err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}

// CurrentDatabase names the database the connection points at.
// Used to isolate cache keys between databases sharing one Redis: every
// in-memory sqlite database gets its own name and file paths are absolute.
func (m *Manager) CurrentDatabase() string {
	return m.identity
}

func databaseIdentity(config *Config, conn *gorm.DB) string {
	if config.Driver == DriverSQLite {
		path, _, _ := strings.Cut(config.Path, "?")
		if isMemoryPath(path) {
			return "sqlite:memory:" + uuid.NewString()
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		return "sqlite:" + path
	}

	name := conn.Migrator().CurrentDatabase()
	if name == "" {
		name = config.Database
	}
	return fmt.Sprintf("%s:%s/%s", config.Driver, net.JoinHostPort(config.Host, strconv.Itoa(config.Port)), name)
}

func isMemoryPath(path string) bool {
	return path == "" || path == MemoryPath || strings.HasPrefix(path, "file::memory:") || strings.Contains(path, "mode=memory")
}

// WithQueryTimeout wraps a context with the configured query timeout
func (m *Manager) WithQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := m.config.QueryTimeout; timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return ctx, func() {}
}
