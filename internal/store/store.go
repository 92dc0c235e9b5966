// Package store provides the TTL cache backing the fallback hook.
//
// Currently only MemoryStore is implemented. For multi-instance
// deployments, implement Store over Redis or similar.
package store

import (
	"sync"
	"time"
)

// DefaultTTL is how long a cached response stays servable.
const DefaultTTL = 5 * time.Minute

// Store is the interface the fallback hook caches through.
type Store interface {
	// Set stores a value under key.
	Set(key string, value []byte) error

	// Get retrieves an unexpired value.
	Get(key string) ([]byte, bool)

	// Delete removes a value.
	Delete(key string) error

	// Close cleans up resources. Idempotent.
	Close() error
}

// MemoryStore is a simple in-memory TTL Store.
type MemoryStore struct {
	data     map[string]entry
	mu       sync.RWMutex
	ttl      time.Duration
	stopChan chan struct{}
	stopped  bool
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store; ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		data:     make(map[string]entry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Set stores a value with the store's TTL.
func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.data[key] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Get retrieves a value if it exists and hasn't expired.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[key]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Delete removes a value.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Close stops the cleanup goroutine and clears data. Idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
		s.data = nil
	}
	return nil
}

// cleanup periodically removes expired entries.
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.stopped {
				now := time.Now()
				for key, e := range s.data {
					if now.After(e.expiresAt) {
						delete(s.data, key)
					}
				}
			}
			s.mu.Unlock()
		}
	}
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
