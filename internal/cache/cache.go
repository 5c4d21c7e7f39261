package cache

import (
	"sync"
	"time"
)

// DefaultTTL is the entry lifetime used when a caller does not specify one.
const DefaultTTL = 60 * time.Second

// Store defines the minimal contract required by the lookup layer to cache
// values between requests. Any type implementing these operations is
// substitutable; TTLStore is the in-memory implementation used in production.
type Store[K comparable, V any] interface {
	// Get returns the stored value if the key exists and has not expired.
	Get(key K) (V, bool)
	// Set stores value under key. A ttl <= 0 falls back to the store default.
	Set(key K, value V, ttl time.Duration)
	// Has reports whether a live (non-expired) entry exists for key.
	Has(key K) bool
	// Delete removes the entry for key, expired or not, and reports whether
	// anything was removed.
	Delete(key K) bool
	// Sweep removes every expired entry and returns how many were removed.
	Sweep() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLStore is an in-memory key-value store with per-entry expiration.
// Expiration is enforced lazily at read time, so correctness never depends
// on a background sweeper running. Safe for concurrent use.
type TTLStore[K comparable, V any] struct {
	mu         sync.RWMutex
	items      map[K]entry[V]
	defaultTTL time.Duration

	// now is swapped out in tests to control expiry deterministically.
	now func() time.Time
}

// New constructs a TTLStore. A defaultTTL <= 0 selects DefaultTTL.
func New[K comparable, V any](defaultTTL time.Duration) *TTLStore[K, V] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &TTLStore[K, V]{
		items:      make(map[K]entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the value stored under key if the entry is still live.
// An expired entry behaves as absent and is removed on the way out.
func (s *TTLStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if !s.now().Before(e.expiresAt) {
		s.Delete(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, overwriting any prior entry. The entry expires
// ttl from now; ttl <= 0 selects the store default.
func (s *TTLStore[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.mu.Lock()
	s.items[key] = entry[V]{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

// Has reports whether a live entry exists for key, using the same freshness
// check as Get.
func (s *TTLStore[K, V]) Has(key K) bool {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	return ok && s.now().Before(e.expiresAt)
}

// Delete removes the entry for key regardless of expiry state.
func (s *TTLStore[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	return true
}

// Sweep drops every entry whose expiration has passed. Get and Has already
// self-guard against stale entries, so sweeping only reclaims memory.
func (s *TTLStore[K, V]) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of physically stored entries, expired or not.
func (s *TTLStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
