// Package session hands short-lived credentials from a producer to a check worker
// through an opaque reference key, so the credential never travels in job payloads.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/billingwatch/backend/internal/domain/billingcheck"
	"github.com/billingwatch/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CredentialExchange implements billingcheck.CredentialExchange on the shared store
type CredentialExchange struct {
	store  shared.SharedStore
	keys   billingcheck.KeySpace
	ttl    time.Duration
	newKey func() (string, error)
}

// Option configures a CredentialExchange
type Option func(*CredentialExchange)

// WithTTL overrides the visibility window of stored credentials
func WithTTL(ttl time.Duration) Option {
	return func(e *CredentialExchange) {
		e.ttl = ttl
	}
}

// WithKeyGenerator overrides reference key generation
func WithKeyGenerator(gen func() (string, error)) Option {
	return func(e *CredentialExchange) {
		e.newKey = gen
	}
}

// NewCredentialExchange creates a credential exchange with the default 5 minute window
func NewCredentialExchange(store shared.SharedStore, keys billingcheck.KeySpace, opts ...Option) *CredentialExchange {
	e := &CredentialExchange{
		store:  store,
		keys:   keys,
		ttl:    billingcheck.DefaultSessionTTL,
		newKey: randomReferenceKey,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// randomReferenceKey returns a random (version 4) UUID read from crypto/rand
func randomReferenceKey() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Store saves credential under a fresh reference key and returns the key
func (e *CredentialExchange) Store(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", billingcheck.ErrEmptyCredential
	}

	referenceKey, err := e.newKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate reference key: %w", err)
	}

	if err := e.store.Set(ctx, e.keys.SessionKey(referenceKey), credential, e.ttl); err != nil {
		return "", fmt.Errorf("failed to store credential: %w", err)
	}

	return referenceKey, nil
}

// Retrieve returns the credential for referenceKey. The entry is not consumed.
func (e *CredentialExchange) Retrieve(ctx context.Context, referenceKey string) (string, bool, error) {
	credential, found, err := e.store.Get(ctx, e.keys.SessionKey(referenceKey))
	if err != nil {
		return "", false, fmt.Errorf("failed to read credential: %w", err)
	}
	if !found || credential == "" {
		return "", false, nil
	}
	return credential, true, nil
}

// Ensure CredentialExchange implements billingcheck.CredentialExchange
var _ billingcheck.CredentialExchange = (*CredentialExchange)(nil)
