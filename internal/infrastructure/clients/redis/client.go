package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	"github.com/zatekoja/localservices/pkg/config"
	"github.com/zatekoja/localservices/pkg/retry"
)

// connectRetry is short: the API server falls back to in-process
// cache and event bus when Redis stays unreachable.
var connectRetry = retry.Config{
	MaxAttempts:     4,
	InitialDelay:    250 * time.Millisecond,
	MaxDelay:        2 * time.Second,
	BackoffFactor:   2.0,
	MaxTotalTimeout: 10 * time.Second,
}

// Client wraps the go-redis client shared by the cache, settings and event bus
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis, retrying the initial ping
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 3 * time.Second,
	})

	logger := observability.GetLogger()
	err := retry.DoWithLog(context.Background(), connectRetry, "Redis",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return rdb.Ping(ctx).Err()
		},
		func(attempt int, err error, nextDelay time.Duration) {
			logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).
				Msg("Redis connection attempt failed")
		},
	)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr(), err)
	}

	logger.Info().Str("addr", cfg.RedisAddr()).Int("db", cfg.DB).Msg("connected to Redis")
	return &Client{rdb: rdb}, nil
}

// Client returns the underlying go-redis client
func (c *Client) Client() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies the connection to Redis
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
