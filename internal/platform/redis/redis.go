package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/open-builders/exmatrikulator-bot/internal/common/errors"
)

// Client is the bot's shared Redis connection, used by the member cache, the challenge
// store and the update stream worker.
type Client struct {
	*redis.Client
}

// Open connects to Redis and pings it. An empty addr is a configuration error: callers
// only open Redis when REDIS_ADDR is set.
func Open(ctx context.Context, addr, password string, db int) (*Client, error) {
	if addr == "" {
		return nil, apperrors.NewConfigError(apperrors.NewValidationError("REDIS_ADDR", "empty address"))
	}
	c := &Client{Client: redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
		// Blocking stream reads hold a connection for the whole block period.
		PoolSize: 10,
	})}
	if err := c.Check(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Check pings Redis; it backs the /ready endpoint.
func (c *Client) Check(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return apperrors.NewCacheError("ping", err)
	}
	return nil
}
