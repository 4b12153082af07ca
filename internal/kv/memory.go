// ABOUTME: In-process kv Store backed by jellydator/ttlcache
// ABOUTME: Used for local development and tests when no Redis address is configured

package kv

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements Store in memory. State does not survive restarts.
type MemoryStore struct {
	// mu serializes IncrWindow's read-modify-write; plain Get/Set rely on the cache's own locking.
	mu    sync.Mutex
	cache *ttlcache.Cache[string, []byte]
	now   func() time.Time
}

// NewMemoryStore creates a MemoryStore and starts its expiry loop.
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go cache.Start()

	return &MemoryStore{
		cache: cache,
		now:   time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	item := m.cache.Get(key)
	if item == nil {
		return nil, ErrNotFound
	}
	val := item.Value()
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	m.cache.Set(key, stored, ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// IncrWindow mirrors the Redis script: the first increment fixes the expiry,
// later increments re-store the counter with whatever time is left.
func (m *MemoryStore) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.cache.Get(key)
	if item == nil {
		m.cache.Set(key, encodeCount(1), window)
		return 1, window, nil
	}

	count := decodeCount(item.Value()) + 1
	remaining := item.ExpiresAt().Sub(m.now())
	if remaining <= 0 {
		m.cache.Set(key, encodeCount(1), window)
		return 1, window, nil
	}
	m.cache.Set(key, encodeCount(count), remaining)
	return count, remaining, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close stops the expiry loop.
func (m *MemoryStore) Close() error {
	m.cache.Stop()
	return nil
}

func encodeCount(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func decodeCount(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
