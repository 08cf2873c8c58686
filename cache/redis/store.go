package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/shadow-crest/cache"
	"github.com/redis/go-redis/v9"
)

// Store implements cache.Store on top of Redis string keys with PX expiry.
type Store struct {
	client redis.UniversalClient
	prefix string // optional key prefix
}

// NewStore creates a new Store.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
	}
}

func (r *Store) redisKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

// Get implements cache.Store.Get.
func (r *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q from Redis: %w", key, err)
	}
	return val, nil
}

// Set implements cache.Store.Set.
func (r *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.redisKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %q in Redis: %w", key, err)
	}
	return nil
}

// Delete implements cache.Store.Delete.
func (r *Store) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %q from Redis: %w", key, err)
	}
	return nil
}

var _ cache.Store = (*Store)(nil)
