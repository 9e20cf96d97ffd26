package redis

import "errors"

var (
	// ErrCacheDisabled is returned by every operation on a disabled cache
	ErrCacheDisabled = errors.New("row cache is disabled")

	// ErrMiss signals that no value is stored under the key
	ErrMiss = errors.New("row cache miss")

	// ErrCodec wraps msgpack encode and decode failures
	ErrCodec = errors.New("row cache codec failure")
)

// IsMiss reports whether err is a cache miss
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
