package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ValidatorCache stores the last-seen cache validator (ETag equivalent) for a
// registry resource. Keys are "provider:identifier". Entries live until
// overwritten; there is no expiry. Implementations must support concurrent,
// independent key access.
type ValidatorCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, validator string) error
}

// CacheKey builds the canonical cache key for a provider resource.
func CacheKey(provider, identifier string) string {
	return provider + ":" + identifier
}

// MemoryValidatorCache is a mutex-guarded map, for tests and the one-shot CLI.
type MemoryValidatorCache struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryValidatorCache() *MemoryValidatorCache {
	return &MemoryValidatorCache{data: make(map[string]string)}
}

func (c *MemoryValidatorCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *MemoryValidatorCache) Set(_ context.Context, key, validator string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = validator
	return nil
}

// RedisValidatorCache persists validators for long-running watch deployments.
// Plain per-key GET/SET, no TTL.
type RedisValidatorCache struct {
	client *redis.Client
	prefix string
}

func NewRedisValidatorCache(client *redis.Client) *RedisValidatorCache {
	return &RedisValidatorCache{client: client, prefix: "watch:validator:"}
}

func (c *RedisValidatorCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading validator: %w", err)
	}
	return val, true, nil
}

func (c *RedisValidatorCache) Set(ctx context.Context, key, validator string) error {
	if err := c.client.Set(ctx, c.prefix+key, validator, 0).Err(); err != nil {
		return fmt.Errorf("storing validator: %w", err)
	}
	return nil
}
