// Package lease provides a distributed, non-blocking try-lock on top of the shared store.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/billingwatch/backend/internal/domain/billingcheck"
	"github.com/billingwatch/backend/internal/domain/shared"
)

// markerValue is the value written under a held lease key
const markerValue = "1"

// ExclusiveLease implements billingcheck.LeaseManager with SET NX + TTL.
// Leases are never renewed or released; expiry is the only release path.
type ExclusiveLease struct {
	store shared.SharedStore
}

// NewExclusiveLease creates a lease manager backed by store
func NewExclusiveLease(store shared.SharedStore) *ExclusiveLease {
	return &ExclusiveLease{store: store}
}

// TryAcquire returns true iff this call established the marker for key.
// It does not block or retry.
func (l *ExclusiveLease) TryAcquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return false, ErrInvalidTimeout
	}

	acquired, err := l.store.SetNX(ctx, key, markerValue, timeout)
	if err != nil {
		return false, fmt.Errorf("failed to obtain lease: %w", err)
	}
	return acquired, nil
}

// Ensure ExclusiveLease implements LeaseManager
var _ billingcheck.LeaseManager = (*ExclusiveLease)(nil)
