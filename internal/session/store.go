// Package session holds small per-user values (preferences, last known
// location, bearer token) behind an injectable Store.
package session

import (
	"context"
	"sync"
)

// Well-known keys.
const (
	KeyToken    = "token"
	KeyRadius   = "radius"
	KeyLimit    = "limit"
	KeyLocation = "location"
)

// Store is a string key/value store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
}

// MemoryStore is a concurrency-safe in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store.Set.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Clear implements Store.Clear. Clearing a missing key is a no-op.
func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
