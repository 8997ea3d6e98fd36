package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/billingwatch/backend/internal/domain/billingcheck"
	"github.com/billingwatch/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestExchange(t *testing.T, opts ...Option) (*CredentialExchange, *cache.InMemorySharedStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := cache.NewInMemorySharedStore(cache.WithClock(clock.Now))
	t.Cleanup(func() { _ = store.Close() })
	return NewCredentialExchange(store, billingcheck.NewKeySpace("gitlab:gcp"), opts...), store, clock
}

func TestCredentialExchange_StoreRetrieve(t *testing.T) {
	exchange, store, clock := newTestExchange(t)
	ctx := context.Background()

	referenceKey, err := exchange.Store(ctx, "tok-A")
	require.NoError(t, err)

	t.Run("reference key is a random uuid", func(t *testing.T) {
		id, err := uuid.Parse(referenceKey)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(4), id.Version())
	})

	t.Run("credential is stored under the session namespace", func(t *testing.T) {
		value, found, err := store.Get(ctx, "gitlab:gcp:session:"+referenceKey)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "tok-A", value)

		ttl, err := store.TTL(ctx, "gitlab:gcp:session:"+referenceKey)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, ttl)
	})

	t.Run("retrieve returns the credential within the window", func(t *testing.T) {
		clock.Advance(4 * time.Minute)

		credential, found, err := exchange.Retrieve(ctx, referenceKey)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "tok-A", credential)
	})

	t.Run("retrieve is idempotent", func(t *testing.T) {
		credential, found, err := exchange.Retrieve(ctx, referenceKey)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "tok-A", credential)
	})

	t.Run("retrieve is absent after the window", func(t *testing.T) {
		clock.Advance(time.Minute)

		_, found, err := exchange.Retrieve(ctx, referenceKey)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestCredentialExchange_FreshKeys(t *testing.T) {
	exchange, _, _ := newTestExchange(t)
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		key, err := exchange.Store(ctx, "tok")
		require.NoError(t, err)
		_, dup := seen[key]
		require.False(t, dup, "reference keys must not repeat")
		seen[key] = struct{}{}
	}
}

func TestCredentialExchange_UnknownKey(t *testing.T) {
	exchange, _, _ := newTestExchange(t)

	_, found, err := exchange.Retrieve(context.Background(), "no-such-key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCredentialExchange_EmptyCredential(t *testing.T) {
	exchange, store, _ := newTestExchange(t)

	_, err := exchange.Store(context.Background(), "")
	assert.ErrorIs(t, err, billingcheck.ErrEmptyCredential)
	assert.Equal(t, 0, store.Size())
}

func TestCredentialExchange_Options(t *testing.T) {
	exchange, store, _ := newTestExchange(t,
		WithTTL(time.Minute),
		WithKeyGenerator(func() (string, error) { return "R1", nil }),
	)
	ctx := context.Background()

	key, err := exchange.Store(ctx, "tok-A")
	require.NoError(t, err)
	assert.Equal(t, "R1", key)

	ttl, err := store.TTL(ctx, "gitlab:gcp:session:R1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	t.Run("key generation failure", func(t *testing.T) {
		failing, _, _ := newTestExchange(t, WithKeyGenerator(func() (string, error) {
			return "", errors.New("entropy exhausted")
		}))
		_, err := failing.Store(ctx, "tok")
		assert.Error(t, err)
	})
}
