package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache[V any](capacity int, ttl time.Duration) (*LRUCache[V], *fakeNow) {
	clock := &fakeNow{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[V](capacity, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLRUCache_BasicOperations(t *testing.T) {
	cache := NewLRUCache[string](100, time.Minute)

	t.Run("SetAndGet", func(t *testing.T) {
		cache.Set("key1", "value1", 0)

		val, ok := cache.Get("key1")
		assert.True(t, ok)
		assert.Equal(t, "value1", val)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		val, ok := cache.Get("nonexistent")
		assert.False(t, ok)
		assert.Empty(t, val)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		cache.Set("key2", "original", 0)
		cache.Set("key2", "updated", 0)

		val, ok := cache.Get("key2")
		assert.True(t, ok)
		assert.Equal(t, "updated", val)
	})
}

func TestLRUCache_IdleExpiration(t *testing.T) {
	cache, clock := newTestCache[int](100, time.Minute)
	var evicted []string
	cache.OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	cache.Set("session", 1, 0)

	clock.Advance(50 * time.Second)
	_, ok := cache.Get("session")
	require.True(t, ok)

	// The read above extended the deadline.
	clock.Advance(50 * time.Second)
	_, ok = cache.Get("session")
	require.True(t, ok)

	clock.Advance(61 * time.Second)
	_, ok = cache.Get("session")
	assert.False(t, ok)
	assert.Equal(t, []string{"session"}, evicted)
}

func TestLRUCache_Eviction(t *testing.T) {
	cache := NewLRUCache[int](3, time.Minute)
	var evicted []string
	cache.OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	cache.Set("key1", 1, 0)
	cache.Set("key2", 2, 0)
	cache.Set("key3", 3, 0)
	assert.Equal(t, 3, cache.Size())

	// Access key1 to make it recently used
	cache.Get("key1")

	cache.Set("key4", 4, 0)
	assert.Equal(t, 3, cache.Size())
	assert.Equal(t, []string{"key2"}, evicted)
	for _, key := range []string{"key1", "key3", "key4"} {
		_, ok := cache.Get(key)
		assert.True(t, ok, key)
	}
}

func TestLRUCache_Invalidate(t *testing.T) {
	cache := NewLRUCache[int](100, time.Minute)

	t.Run("ExactMatch", func(t *testing.T) {
		cache.Set("chat:1", 1, 0)
		cache.Set("chat:2", 2, 0)

		assert.Equal(t, 1, cache.Invalidate("chat:1"))

		_, ok := cache.Get("chat:1")
		assert.False(t, ok)
		_, ok = cache.Get("chat:2")
		assert.True(t, ok)
	})

	t.Run("WildcardPattern", func(t *testing.T) {
		cache := NewLRUCache[int](100, time.Minute)
		cache.Set("negotiator:1", 1, 0)
		cache.Set("negotiator:2", 2, 0)
		cache.Set("chat:1", 3, 0)

		assert.Equal(t, 2, cache.Invalidate("negotiator:*"))
		_, ok := cache.Get("chat:1")
		assert.True(t, ok)
	})
}

func TestLRUCache_ConcurrentAccess(t *testing.T) {
	cache := NewLRUCache[int](1000, time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			cache.Set(string(rune('a'+n%26)), n, 0)
		}(i)
		go func(n int) {
			defer wg.Done()
			cache.Get(string(rune('a' + n%26)))
		}(i)
	}

	wg.Wait()
	assert.LessOrEqual(t, cache.Size(), 26)
}

func TestService_CleanupExpired(t *testing.T) {
	svc := NewService[string](ServiceConfig{
		Capacity:        100,
		DefaultTTL:      50 * time.Millisecond,
		CleanupInterval: 20 * time.Millisecond,
	})
	defer svc.Close()

	var evictions atomic.Int32
	svc.OnEvict(func(string, string) { evictions.Add(1) })

	svc.Set("temp", "data", 0)
	assert.Equal(t, 1, svc.Size())

	assert.Eventually(t, func() bool { return svc.Size() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), evictions.Load())
}

func TestService_Close(t *testing.T) {
	svc := NewService[int](DefaultServiceConfig())

	svc.Close()
	svc.Close()
}
