package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// resetKeyPrefix namespaces reset token keys in a shared Redis instance.
const resetKeyPrefix = "gatehouse:reset:"

// RedisResetTokenStore implements ResetTokenStore using Redis. Single
// use comes from GETDEL, expiry from key TTLs.
type RedisResetTokenStore struct {
	client *redis.Client
}

// NewRedisResetTokenStore creates a Redis-backed reset token store.
func NewRedisResetTokenStore(client *redis.Client) *RedisResetTokenStore {
	return &RedisResetTokenStore{client: client}
}

// Create stores the token hash with a TTL running to expiresAt.
func (s *RedisResetTokenStore) Create(ctx context.Context, token, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, resetKeyPrefix+HashToken(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("creating reset token: %w", err)
	}
	return nil
}

// Consume resolves and deletes the token in a single GETDEL round trip.
func (s *RedisResetTokenStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, resetKeyPrefix+HashToken(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrResetTokenInvalid
		}
		return "", fmt.Errorf("consuming reset token: %w", err)
	}
	return userID, nil
}

// DeleteExpired is a no-op: Redis evicts expired keys itself.
func (s *RedisResetTokenStore) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}
