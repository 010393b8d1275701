package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 2 * time.Second

// RedisBackend keeps the token under a single Redis key, for deployments
// where several processes share one session.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend returns a backend using client and key.
func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

// Load fetches the token.
func (r *RedisBackend) Load() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	token, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load token from redis: %w", err)
	}
	return token, nil
}

// Save stores the token without expiry; validity is decided by the remote
// service, not by the store.
func (r *RedisBackend) Save(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key, token, 0).Err(); err != nil {
		return fmt.Errorf("failed to save token to redis: %w", err)
	}
	return nil
}

// Delete removes the key.
func (r *RedisBackend) Delete() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
