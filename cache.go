package authzkit

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// PermissionCache is the advisory per-user cache of materialized
// permission sets. Correctness never depends on it: a cold or disabled
// cache only costs a store round-trip. Last-writer-wins on concurrent
// Put/Invalidate is acceptable.
type PermissionCache interface {
	// Get returns the cached set for the user, if present and fresh.
	Get(userID string) (PermissionSet, bool)

	// Put stores the set for the user with the given time-to-live.
	Put(userID string, set PermissionSet, ttl time.Duration)

	// Invalidate drops the user's cached set. Must be called on every
	// assignment or revocation affecting the user.
	Invalidate(userID string)
}

type cacheEntry struct {
	set       PermissionSet
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache safe for concurrent use.
type MemoryCache struct {
	entries    *xsync.MapOf[string, cacheEntry]
	defaultTTL time.Duration
}

var _ PermissionCache = (*MemoryCache)(nil)

// MemoryCacheOption configures the memory cache.
type MemoryCacheOption func(*MemoryCache)

// WithDefaultTTL sets the TTL used when Put receives a zero duration.
func WithDefaultTTL(ttl time.Duration) MemoryCacheOption {
	return func(c *MemoryCache) { c.defaultTTL = ttl }
}

// NewMemoryCache creates a new in-memory permission cache.
func NewMemoryCache(opts ...MemoryCacheOption) *MemoryCache {
	c := &MemoryCache{
		entries:    xsync.NewMapOf[string, cacheEntry](),
		defaultTTL: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached set for the user, if present and fresh.
func (c *MemoryCache) Get(userID string) (PermissionSet, bool) {
	e, ok := c.entries.Load(userID)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.entries.Delete(userID)
		return nil, false
	}
	return e.set, true
}

// Put stores the set for the user. The set is cloned so later mutations
// by the caller cannot corrupt cached state.
func (c *MemoryCache) Put(userID string, set PermissionSet, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.entries.Store(userID, cacheEntry{
		set:       set.Clone(),
		expiresAt: time.Now().Add(ttl),
	})
}

// Invalidate drops the user's cached set.
func (c *MemoryCache) Invalidate(userID string) {
	c.entries.Delete(userID)
}

// Len returns the number of live entries, counting expired ones that
// have not been touched since expiry.
func (c *MemoryCache) Len() int {
	return c.entries.Size()
}

// noopCache disables caching; every evaluation reads the store.
type noopCache struct{}

func (noopCache) Get(string) (PermissionSet, bool)            { return nil, false }
func (noopCache) Put(string, PermissionSet, time.Duration)    {}
func (noopCache) Invalidate(string)                           {}
