// ABOUTME: Thread-safe TTL cache of recently seen chat event IDs
// ABOUTME: Lets transports drop redelivered events before they reach the pipeline

package dedupe

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Cache remembers keys for a fixed window, bounded in size. Least recently
// used entries are evicted first when full.
type Cache struct {
	seen      *ttlcache.Cache[string, struct{}]
	closeOnce sync.Once
}

// New creates a cache and starts its expiry loop. Call Close to stop it.
func New(ttl time.Duration, maxSize int) *Cache {
	seen := ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](ttl),
		ttlcache.WithCapacity[string, struct{}](uint64(maxSize)),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go seen.Start()
	return &Cache{seen: seen}
}

// Check reports whether key was marked within the window.
func (c *Cache) Check(key string) bool {
	return c.seen.Get(key) != nil
}

// CheckAndMark marks key and reports whether it had already been seen.
func (c *Cache) CheckAndMark(key string) bool {
	_, found := c.seen.GetOrSet(key, struct{}{})
	return found
}

// Mark records key, restarting its window.
func (c *Cache) Mark(key string) {
	c.seen.Set(key, struct{}{}, ttlcache.DefaultTTL)
}

// Len returns the number of unexpired keys.
func (c *Cache) Len() int {
	return c.seen.Len()
}

// Close stops the expiry loop. It is safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(c.seen.Stop)
}
