package cache

import (
	"context"
	"time"
)

// Backend is a byte-value cache used to memoize introspection responses.
type Backend interface {
	// Get retrieves a value, returning ErrMiss when the key is absent or
	// expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL; a zero TTL uses the backend's default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes one key.
	Delete(ctx context.Context, key string) error

	// Clear removes every key owned by this backend.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Config holds settings common to all backends.
type Config struct {
	// DefaultTTL applies when Set is called with a zero TTL.
	DefaultTTL time.Duration
	// Prefix namespaces every key, keeping shared stores safe.
	Prefix string
}

// DefaultConfig returns the settings used by the introspection server.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "marker:",
	}
}

// ErrMiss reports an absent or expired key.
type ErrMiss struct {
	Key string
}

func (e ErrMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsMiss reports whether an error is a cache miss.
func IsMiss(err error) bool {
	_, ok := err.(ErrMiss)
	return ok
}
