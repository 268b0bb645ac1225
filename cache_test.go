package authzkit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryCachePutGet tests basic cache operations
func TestMemoryCachePutGet(t *testing.T) {
	cache := NewMemoryCache()

	set := NewPermissionSet("contract:read:own")
	cache.Put("user-1", set, time.Minute)

	got, ok := cache.Get("user-1")
	require.True(t, ok)
	assert.True(t, got.Contains("contract:read:own"))

	_, ok = cache.Get("user-2")
	assert.False(t, ok)
}

// TestMemoryCacheExpiry tests that entries expire after their TTL
func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()

	cache.Put("user-1", NewPermissionSet("contract:read:own"), 10*time.Millisecond)

	_, ok := cache.Get("user-1")
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)

	_, ok = cache.Get("user-1")
	assert.False(t, ok, "entry should have expired")
}

// TestMemoryCacheDefaultTTL tests the zero-duration fallback
func TestMemoryCacheDefaultTTL(t *testing.T) {
	cache := NewMemoryCache(WithDefaultTTL(10 * time.Millisecond))

	cache.Put("user-1", NewPermissionSet("contract:read:own"), 0)

	_, ok := cache.Get("user-1")
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)

	_, ok = cache.Get("user-1")
	assert.False(t, ok)
}

// TestMemoryCacheInvalidate tests explicit invalidation
func TestMemoryCacheInvalidate(t *testing.T) {
	cache := NewMemoryCache()

	cache.Put("user-1", NewPermissionSet("contract:read:own"), time.Minute)
	cache.Invalidate("user-1")

	_, ok := cache.Get("user-1")
	assert.False(t, ok)

	// Invalidating an absent entry is a no-op
	cache.Invalidate("user-2")
}

// TestMemoryCachePutClones tests that cached sets are isolated from
// caller mutation
func TestMemoryCachePutClones(t *testing.T) {
	cache := NewMemoryCache()

	set := NewPermissionSet("contract:read:own")
	cache.Put("user-1", set, time.Minute)

	set["promoter:read:all"] = struct{}{}

	got, ok := cache.Get("user-1")
	require.True(t, ok)
	assert.False(t, got.Contains("promoter:read:all"))
}

// TestMemoryCacheConcurrentAccess tests concurrent readers and writers
func TestMemoryCacheConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", n%10)
			cache.Put(userID, NewPermissionSet("contract:read:own"), time.Minute)
			cache.Get(userID)
			cache.Invalidate(userID)
		}(i)
	}
	wg.Wait()
}
