// ABOUTME: Tests for the event ID dedupe cache
// ABOUTME: Validates TTL expiration, capacity limits and concurrent CheckAndMark

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_Check_NotSeen(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.Check("$never-seen"))
}

func TestCache_Mark(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	cache.Mark("$evt1")
	cache.Mark("$evt2")

	assert.True(t, cache.Check("$evt1"))
	assert.True(t, cache.Check("$evt2"))
	assert.False(t, cache.Check("$evt3"))
	assert.Equal(t, 2, cache.Len())
}

func TestCache_Check_Expired(t *testing.T) {
	cache := New(20*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("$expiring")
	assert.True(t, cache.Check("$expiring"))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, cache.Check("$expiring"))
}

func TestCache_CheckAndMark(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("$evt1"), "first delivery is new")
	assert.True(t, cache.CheckAndMark("$evt1"), "redelivery is a duplicate")
	assert.False(t, cache.CheckAndMark("$evt2"))
}

func TestCache_CheckAndMark_AfterExpiry(t *testing.T) {
	cache := New(20*time.Millisecond, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("$evt1"))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, cache.CheckAndMark("$evt1"), "expired keys are new again")
}

func TestCache_Capacity(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	for i := 0; i < 5; i++ {
		cache.Mark(fmt.Sprintf("$evt%d", i))
	}

	assert.Equal(t, 3, cache.Len())
	assert.False(t, cache.Check("$evt0"), "oldest entries are evicted")
	assert.True(t, cache.Check("$evt4"))
}

func TestCache_CheckAndMark_Concurrent(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !cache.CheckAndMark("$same") {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load(), "exactly one goroutine sees the event as new")
}

func TestCache_CloseTwice(t *testing.T) {
	cache := New(time.Minute, 10)
	cache.Close()
	assert.NotPanics(t, cache.Close)
}
