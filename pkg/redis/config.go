package redis

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config controls the optional Redis row cache
type Config struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	TTL     time.Duration `json:"ttl" yaml:"ttl"` // Lifetime of every cached read

	// Single node
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Database int    `json:"database" yaml:"database"`

	// Redis Cluster. A non-empty list takes precedence over Host/Port.
	ClusterAddrs []string `json:"cluster_addrs" yaml:"cluster_addrs"`

	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	PoolSize     int           `json:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

// DefaultConfig returns an enabled cache pointing at a local Redis
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		TTL:          time.Hour,
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Validate checks an enabled configuration; a disabled one is always valid
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !c.IsClusterMode() {
		if c.Host == "" {
			return errors.New("redis host is required when cache is enabled")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return errors.New("redis port must be between 1 and 65535")
		}
	}
	if c.TTL <= 0 {
		return errors.New("redis ttl must be positive when cache is enabled")
	}
	if c.PoolSize < 1 {
		return errors.New("redis pool_size must be at least 1")
	}
	return nil
}

// Addr returns the single node address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsClusterMode reports whether cluster addresses are configured
func (c *Config) IsClusterMode() bool {
	return len(c.ClusterAddrs) > 0
}

func (c *Config) universalOptions() *redis.UniversalOptions {
	addrs := c.ClusterAddrs
	if !c.IsClusterMode() {
		addrs = []string{c.Addr()}
	}
	return &redis.UniversalOptions{
		Addrs:        addrs,
		DB:           c.Database,
		Username:     c.Username,
		Password:     c.Password,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}
