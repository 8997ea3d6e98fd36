package billingcheck

import (
	"context"
	"time"
)

// LeaseManager issues non-blocking, time-bounded exclusive leases.
// A lease is released only by expiry.
type LeaseManager interface {
	// TryAcquire returns true iff this call established the lease for key.
	// false with a nil error means another holder owns it.
	TryAcquire(ctx context.Context, key string, timeout time.Duration) (bool, error)
}

// CredentialExchange hands credentials between a producer and a worker through
// an opaque reference key.
type CredentialExchange interface {
	// Store saves the credential and returns a freshly generated reference key
	Store(ctx context.Context, credential string) (string, error)

	// Retrieve returns the credential for a reference key.
	// found is false if the key is unknown or its window elapsed.
	Retrieve(ctx context.Context, referenceKey string) (credential string, found bool, err error)
}

// StateTracker persists the last known billing state per credential and the
// global transition counter.
type StateTracker interface {
	ReadPrevious(ctx context.Context, credential string) (PreviousState, error)
	WriteCurrent(ctx context.Context, credential string, enabled bool) error
	IncrementChanges(ctx context.Context) (int64, error)
}

// BillingChecker queries the cloud provider for projects with billing enabled
type BillingChecker interface {
	Execute(ctx context.Context, credential string) ([]string, error)
}
