package trending

import "time"

// DefaultCacheTTL is how long a fetched result stays valid.
const DefaultCacheTTL = 5 * time.Minute

// Store is the persistence abstraction behind Cache.
// Implementations need not be safe for concurrent use; the Cache owner
// serialises access.
type Store interface {
	Get(key string) (CacheEntry, bool)
	Set(key string, e CacheEntry)
	Delete(key string)
	Len() int
}

// InMemoryStore is a map-backed Store.
type InMemoryStore struct {
	entries map[string]CacheEntry
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]CacheEntry)}
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(key string) (CacheEntry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Set implements Store.Set.
func (s *InMemoryStore) Set(key string, e CacheEntry) {
	s.entries[key] = e
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(key string) {
	delete(s.entries, key)
}

// Len implements Store.Len.
func (s *InMemoryStore) Len() int {
	return len(s.entries)
}

// Cache is a time-boxed result cache keyed by Query.Key. Expired entries are
// evicted lazily on read; there is no background sweep.
type Cache struct {
	store Store
	ttl   time.Duration
}

// NewCache returns a Cache over an in-memory store. If ttl <= 0,
// DefaultCacheTTL is used.
func NewCache(ttl time.Duration) *Cache {
	return NewCacheWithStore(NewInMemoryStore(), ttl)
}

// NewCacheWithStore returns a Cache over the given Store.
func NewCacheWithStore(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{store: store, ttl: ttl}
}

// TTL returns the validity window of an entry.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Lookup returns the entry for q if it is still valid at now.
// An entry is valid iff now - FetchedAt < TTL; a stale entry is removed.
func (c *Cache) Lookup(q Query, now time.Time) (CacheEntry, bool) {
	key := q.Key()
	e, ok := c.store.Get(key)
	if !ok {
		return CacheEntry{}, false
	}
	if now.Sub(e.FetchedAt) >= c.ttl {
		c.store.Delete(key)
		return CacheEntry{}, false
	}
	return e, true
}

// Put records videos for q as fetched at fetchedAt, replacing any prior entry.
func (c *Cache) Put(q Query, videos []TrendingVideo, fetchedAt time.Time) CacheEntry {
	e := CacheEntry{Query: q, Videos: videos, FetchedAt: fetchedAt}
	c.store.Set(q.Key(), e)
	return e
}

// Len returns the number of stored entries, including ones not yet evicted.
func (c *Cache) Len() int { return c.store.Len() }
