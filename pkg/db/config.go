package db

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// MemoryPath opens a private in-memory sqlite database
const MemoryPath = ":memory:"

// DefaultSQLiteConfig returns a configuration for a sqlite database at path
func DefaultSQLiteConfig(path string) *Config {
	return &Config{
		Driver:       DriverSQLite,
		Path:         path,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		QueryTimeout: 30 * time.Second,
		Logging: LoggingConfig{
			Level:              "warn",
			SlowQueryThreshold: 200 * time.Millisecond,
		},
	}
}

// Validate checks if the database configuration is valid
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
		return nil
	case DriverMySQL, DriverPostgres:
	case "":
		return fmt.Errorf("database driver is required")
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}

	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Username == "" {
		return fmt.Errorf("database username is required")
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("max_open_conns must be at least 1")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

// GetDSN returns the driver specific data source name
func (c *Config) GetDSN() string {
	switch c.Driver {
	case DriverMySQL:
		cfg := mysql.Config{
			User:                 c.Username,
			Passwd:               c.Password,
			Net:                  "tcp",
			Addr:                 fmt.Sprintf("%s:%d", c.Host, c.Port),
			DBName:               c.Database,
			Loc:                  parseLocation(c.TimeZone),
			ParseTime:            true,
			AllowNativePasswords: true,
			// Report matched rather than changed rows so an UPDATE with unchanged values still counts
			ClientFoundRows: true,
		}
		return cfg.FormatDSN()

	case DriverPostgres:
		query := url.Values{}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		query.Set("sslmode", sslMode)
		query.Set("TimeZone", parseLocation(c.TimeZone).String())

		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.Username, c.Password),
			Host:     c.Host + ":" + strconv.Itoa(c.Port),
			Path:     c.Database,
			RawQuery: query.Encode(),
		}
		return u.String()

	default:
		// Foreign keys are off by default in sqlite and must be enabled per connection
		sep := "?"
		if strings.Contains(c.Path, "?") {
			sep = "&"
		}
		return c.Path + sep + "_foreign_keys=on"
	}
}

// Dialector returns the GORM dialector for the configured driver
func (c *Config) Dialector() gorm.Dialector {
	switch c.Driver {
	case DriverMySQL:
		return gormmysql.Open(c.GetDSN())
	case DriverPostgres:
		return postgres.Open(c.GetDSN())
	default:
		return sqlite.Open(c.GetDSN())
	}
}

// parseLocation parses timezone string to *time.Location
func parseLocation(tz string) *time.Location {
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
