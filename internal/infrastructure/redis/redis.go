package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
)

// Connection timeout constants.
const (
	// dialTimeout is the maximum time to establish a connection.
	dialTimeout = 5 * time.Second

	// readTimeout is the maximum time to wait for a read reply.
	readTimeout = 3 * time.Second

	// writeTimeout is the maximum time to wait for a write reply.
	writeTimeout = 3 * time.Second

	// connectionTimeout is the timeout for verifying connectivity at startup.
	connectionTimeout = 5 * time.Second
)

// Client wraps a go-redis client for the token stores.
//
// Gatehouse uses Redis as an optional backend for session revocation
// and password reset tokens. Keys carry a TTL so expired entries
// evict themselves without a prune loop.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	*redis.Client
}

// New creates a Redis client and verifies connectivity.
//
// Parameters:
//   - cfg: Redis configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If the initial ping fails
func New(cfg config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// HealthCheck verifies Redis is reachable.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection gracefully.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	if err := c.Client.Close(); err != nil {
		return fmt.Errorf("closing redis connection: %w", err)
	}
	return nil
}
