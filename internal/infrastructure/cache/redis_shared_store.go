package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/billingwatch/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// RedisSharedStore implements SharedStore using Redis.
// SET NX PX and INCR give the atomicity leases and the transition counter rely on.
type RedisSharedStore struct {
	client *redis.Client
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// NewRedisSharedStore creates a new Redis-based shared store
func NewRedisSharedStore(cfg RedisConfig) (*RedisSharedStore, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  dialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSharedStore{client: client}, nil
}

// NewRedisSharedStoreWithClient creates a store with an existing Redis client
func NewRedisSharedStoreWithClient(client *redis.Client) *RedisSharedStore {
	return &RedisSharedStore{client: client}
}

// Get returns the value for key, or found=false on redis.Nil
func (s *RedisSharedStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key: %w", err)
	}
	return value, true, nil
}

// Set stores value with a TTL, overwriting any previous value
func (s *RedisSharedStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// SetNX stores value only if key is absent, in a single atomic command
func (s *RedisSharedStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	created, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set key if absent: %w", err)
	}
	return created, nil
}

// Incr atomically increments the counter stored under key
func (s *RedisSharedStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment key: %w", err)
	}
	return n, nil
}

// TTL returns the remaining time to live of key.
// Redis reports -1 for keys without expiry and -2 for missing keys.
func (s *RedisSharedStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read key ttl: %w", err)
	}
	return ttl, nil
}

// Ping checks connectivity
func (s *RedisSharedStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisSharedStore) Close() error {
	return s.client.Close()
}

// Ensure RedisSharedStore implements SharedStore
var _ shared.SharedStore = (*RedisSharedStore)(nil)
