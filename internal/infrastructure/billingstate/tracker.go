// Package billingstate persists the last known billing state per credential and
// the global count of disabled-to-enabled transitions.
package billingstate

import (
	"context"
	"fmt"
	"time"

	"github.com/billingwatch/backend/internal/domain/billingcheck"
	"github.com/billingwatch/backend/internal/domain/shared"
)

// Tracker implements billingcheck.StateTracker on the shared store
type Tracker struct {
	store shared.SharedStore
	keys  billingcheck.KeySpace
	ttl   time.Duration
}

// NewTracker creates a tracker. A zero ttl falls back to one hour.
func NewTracker(store shared.SharedStore, keys billingcheck.KeySpace, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = billingcheck.DefaultStateTTL
	}
	return &Tracker{store: store, keys: keys, ttl: ttl}
}

// KeyFor returns the storage key of the state record for credential
func (t *Tracker) KeyFor(credential string) string {
	return t.keys.StateKey(credential)
}

// ReadPrevious returns the raw recorded state, or AbsentState if none is visible
func (t *Tracker) ReadPrevious(ctx context.Context, credential string) (billingcheck.PreviousState, error) {
	value, found, err := t.store.Get(ctx, t.KeyFor(credential))
	if err != nil {
		return billingcheck.AbsentState, fmt.Errorf("failed to read billing state: %w", err)
	}
	if !found {
		return billingcheck.AbsentState, nil
	}
	return billingcheck.RecordedState(value), nil
}

// WriteCurrent overwrites the state record and resets its TTL
func (t *Tracker) WriteCurrent(ctx context.Context, credential string, enabled bool) error {
	if err := t.store.Set(ctx, t.KeyFor(credential), billingcheck.FormatState(enabled), t.ttl); err != nil {
		return fmt.Errorf("failed to write billing state: %w", err)
	}
	return nil
}

// IncrementChanges atomically bumps the global transition counter
func (t *Tracker) IncrementChanges(ctx context.Context) (int64, error) {
	n, err := t.store.Incr(ctx, t.keys.ChangesCounterKey())
	if err != nil {
		return 0, fmt.Errorf("failed to increment billing change counter: %w", err)
	}
	return n, nil
}

// Ensure Tracker implements billingcheck.StateTracker
var _ billingcheck.StateTracker = (*Tracker)(nil)
