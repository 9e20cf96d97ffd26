package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const scanBatchSize = 100

// Manager is a msgpack-encoded read cache over a single Redis node or a cluster
type Manager struct {
	config *Config
	client redis.UniversalClient
	stats  counters
}

// NewManager validates config and, when the cache is enabled, creates the client.
// No connection is made until the first command.
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		return nil, errors.New("redis config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	m := &Manager{config: config}
	if !config.Enabled {
		return m, nil
	}

	opts := config.universalOptions()
	if config.IsClusterMode() {
		m.client = redis.NewClusterClient(opts.Cluster())
	} else {
		m.client = redis.NewClient(opts.Simple())
	}
	return m, nil
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Enabled reports whether reads and writes reach Redis. Safe on a nil Manager.
func (m *Manager) Enabled() bool {
	return m != nil && m.client != nil
}

// Ping checks connectivity. A disabled cache pings successfully.
func (m *Manager) Ping(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the client
func (m *Manager) Close() error {
	if !m.Enabled() {
		return nil
	}
	return m.client.Close()
}

// Load decodes the value stored under key into dst.
// It returns ErrMiss when nothing is stored.
func (m *Manager) Load(ctx context.Context, key string, dst interface{}) error {
	if !m.Enabled() {
		return ErrCacheDisabled
	}

	start := time.Now()
	data, err := m.client.Get(ctx, key).Bytes()
	m.stats.observeRead(time.Since(start))

	switch {
	case errors.Is(err, redis.Nil):
		m.stats.misses.Add(1)
		return ErrMiss
	case err != nil:
		m.stats.failures.Add(1)
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := msgpack.Unmarshal(data, dst); err != nil {
		m.stats.failures.Add(1)
		return fmt.Errorf("%w: decode %s: %v", ErrCodec, key, err)
	}
	m.stats.hits.Add(1)
	return nil
}

// Store encodes v and writes it under key with the configured TTL
func (m *Manager) Store(ctx context.Context, key string, v interface{}) error {
	if !m.Enabled() {
		return ErrCacheDisabled
	}

	data, err := msgpack.Marshal(v)
	if err != nil {
		m.stats.failures.Add(1)
		return fmt.Errorf("%w: encode %s: %v", ErrCodec, key, err)
	}
	if err := m.client.Set(ctx, key, data, m.config.TTL).Err(); err != nil {
		m.stats.failures.Add(1)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	m.stats.writes.Add(1)
	return nil
}

// Purge removes every key matching pattern and returns how many were removed.
// Keys are found with SCAN, on every master when running against a cluster.
func (m *Manager) Purge(ctx context.Context, pattern string) (int, error) {
	if !m.Enabled() {
		return 0, ErrCacheDisabled
	}

	var removed atomic.Int64
	var err error
	if cluster, ok := m.client.(*redis.ClusterClient); ok {
		// Masters are visited concurrently
		err = cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			n, err := purgeNode(ctx, node, pattern)
			removed.Add(int64(n))
			return err
		})
	} else {
		var n int
		n, err = purgeNode(ctx, m.client, pattern)
		removed.Store(int64(n))
	}

	total := int(removed.Load())
	m.stats.purged.Add(uint64(total))
	if err != nil {
		m.stats.failures.Add(1)
		return total, fmt.Errorf("purge %s: %w", pattern, err)
	}
	return total, nil
}

// purgeNode deletes one key per command so cluster slots never mix
func purgeNode(ctx context.Context, node redis.Cmdable, pattern string) (int, error) {
	var removed int
	var cursor uint64
	for {
		keys, next, err := node.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return removed, err
		}

		if len(keys) > 0 {
			_, err := node.Pipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, key := range keys {
					pipe.Del(ctx, key)
				}
				return nil
			})
			if err != nil {
				return removed, err
			}
			removed += len(keys)
		}

		if cursor = next; cursor == 0 {
			return removed, nil
		}
	}
}

// Stats returns a snapshot of cache activity
func (m *Manager) Stats() Stats {
	return m.stats.snapshot()
}

// ResetStats zeroes every counter
func (m *Manager) ResetStats() {
	m.stats.reset()
}
