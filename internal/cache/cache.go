// Package cache provides an in-memory store for memoized remote calls.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time // zero = never expires
}

// Store is a mutex-guarded map of operation results keyed by
// (operation, arguments). Entries may carry a TTL; expired entries are
// treated as absent and overwritten on the next Put.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Key builds a cache key from an operation name and its arguments.
// Every argument that affects the result must be included.
func Key(op string, args ...string) string {
	parts := append([]string{op}, args...)
	return strings.Join(parts, "\x00")
}

// Get returns the stored value for key, or ok=false if absent or expired.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Put stores value under key. A zero ttl means the entry never expires.
func (s *Store) Put(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
}

// Clear removes every entry regardless of kind and returns the count removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[string]entry)
	return n
}

// Len returns the number of stored entries, including expired ones not yet
// overwritten.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SetNow overrides the clock. Test hook.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
