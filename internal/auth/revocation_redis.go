package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// revokedKeyPrefix namespaces revocation keys in a shared Redis instance.
const revokedKeyPrefix = "gatehouse:revoked:"

// RedisRevocationStore implements RevocationStore using Redis key TTLs.
// Entries evict themselves when the underlying session expires, so no
// background pruning is needed.
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore creates a Redis-backed revocation store.
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// Revoke stores the session ID with a TTL matching the session's
// remaining lifetime. A session already past its expiry needs no
// record: the token fails parsing on its own.
func (s *RedisRevocationStore) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, revokedKeyPrefix+jti, userID, ttl).Err(); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// IsRevoked reports whether the session ID appears in the store.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired is a no-op: Redis evicts expired keys itself.
func (s *RedisRevocationStore) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}
