package cache

import (
	"fmt"

	"github.com/billingwatch/backend/internal/domain/shared"
	"github.com/billingwatch/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SharedStoreFactory creates shared stores based on configuration
type SharedStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// SharedStoreFactoryOption is a functional option for configuring the factory
type SharedStoreFactoryOption func(*SharedStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) SharedStoreFactoryOption {
	return func(f *SharedStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory store when Redis is unavailable
// Default is false: leases must be shared between worker instances
func WithInMemoryFallback(allow bool) SharedStoreFactoryOption {
	return func(f *SharedStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSharedStoreFactory creates a new factory
func NewSharedStoreFactory(cfg config.RedisConfig, opts ...SharedStoreFactoryOption) *SharedStoreFactory {
	f := &SharedStoreFactory{
		redisConfig: cfg,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisStore creates a Redis-based shared store
func (f *SharedStoreFactory) CreateRedisStore() (shared.SharedStore, error) {
	store, err := NewRedisSharedStore(RedisConfig{
		Host:        f.redisConfig.Host,
		Port:        f.redisConfig.Port,
		Password:    f.redisConfig.Password,
		DB:          f.redisConfig.DB,
		PoolSize:    f.redisConfig.PoolSize,
		DialTimeout: f.redisConfig.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis shared store: %w", err)
	}

	return store, nil
}

// CreateInMemoryStore creates an in-memory shared store
// WARNING: In-memory stores do not share state across process instances,
// so leases no longer prevent duplicate checks from other workers
func (f *SharedStoreFactory) CreateInMemoryStore() shared.SharedStore {
	return NewInMemorySharedStore()
}

// CreateStore creates a shared store, trying Redis first and falling back to
// in-memory only when the fallback is allowed
func (f *SharedStoreFactory) CreateStore() (shared.SharedStore, error) {
	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis shared store",
			zap.String("host", f.redisConfig.Host),
			zap.Int("port", f.redisConfig.Port),
		)
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for shared store but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory shared store. "+
		"Leases will not be shared with other worker instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
