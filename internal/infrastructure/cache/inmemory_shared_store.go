package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/billingwatch/backend/internal/domain/shared"
)

// ErrNotInteger is returned by Incr when the stored value is not an integer
var ErrNotInteger = errors.New("value is not an integer")

// entry represents a stored value with optional expiration
type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemorySharedStore implements SharedStore using an in-memory map.
// It is suitable for single-instance deployments and testing; leases taken
// against it are only exclusive within this process.
type InMemorySharedStore struct {
	mu        sync.Mutex
	entries   map[string]entry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryOption configures an InMemorySharedStore
type InMemoryOption func(*InMemorySharedStore)

// WithClock sets the time source used for expiry
func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemorySharedStore) {
		s.now = now
	}
}

// NewInMemorySharedStore creates a new in-memory shared store
// It starts a background goroutine to clean up expired entries
func NewInMemorySharedStore(opts ...InMemoryOption) *InMemorySharedStore {
	store := &InMemorySharedStore{
		entries:  make(map[string]entry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(store)
	}

	// Start cleanup goroutine
	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

func (s *InMemorySharedStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// lookup returns the live entry for key. Caller must hold mu.
func (s *InMemorySharedStore) lookup(key string) (entry, bool) {
	e, exists := s.entries[key]
	if !exists {
		return entry{}, false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

// Get returns the value for key if present and not expired
func (s *InMemorySharedStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value with a TTL, overwriting any previous value
func (s *InMemorySharedStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: value, expiresAt: s.expiry(ttl)}
	return nil
}

// SetNX stores value only if key is absent or expired
func (s *InMemorySharedStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.entries[key] = entry{value: value, expiresAt: s.expiry(ttl)}
	return true, nil
}

// Incr increments the integer under key, keeping its expiry
func (s *InMemorySharedStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, _ := s.lookup(key)
	var n int64
	if e.value != "" {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to increment key: %w", ErrNotInteger)
		}
		n = parsed
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	s.entries[key] = e
	return n, nil
}

// TTL returns the remaining time to live of key, using Redis conventions:
// -1 for keys without expiry and -2 for missing keys.
func (s *InMemorySharedStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return -2, nil
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(s.now()), nil
}

// Ping always succeeds for the in-memory store
func (s *InMemorySharedStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (s *InMemorySharedStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemorySharedStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired entries from the store
func (s *InMemorySharedStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemorySharedStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Ensure InMemorySharedStore implements SharedStore
var _ shared.SharedStore = (*InMemorySharedStore)(nil)
