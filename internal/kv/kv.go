// ABOUTME: Key-value backend abstraction shared by sessions, rate limits and OTP codes
// ABOUTME: Redis in production, a ttlcache-backed map when no Redis is configured

package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key does not exist or has expired.
	ErrNotFound = errors.New("kv: key not found")

	// ErrUnavailable wraps backend failures (connection refused, timeouts).
	// Callers treat it as a transient condition and degrade instead of failing the update.
	ErrUnavailable = errors.New("kv: backend unavailable")
)

// Store is the narrow capability set the gateway needs from its key-value backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// IncrWindow atomically increments the counter at key and, only when the
	// increment created the key, starts its expiry window. Later increments never
	// extend the window. Returns the new count and the time left in the window.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)

	Ping(ctx context.Context) error
	Close() error
}
