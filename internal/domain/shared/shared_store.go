package shared

import (
	"context"
	"time"
)

// SharedStore is the key-value capability shared by every worker instance.
// Implementations must make SetNX and Incr atomic across processes.
type SharedStore interface {
	// Get returns the value stored under key.
	// found is false when the key is missing or its TTL has elapsed.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, overwriting any prior value and resetting its TTL.
	// A ttl of zero stores the value without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value under key only if the key does not currently exist.
	// Returns true if this call created the key.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Incr atomically increments the integer stored under key and returns the new value.
	// A missing key is treated as zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Close closes the store and releases resources
	Close() error
}

