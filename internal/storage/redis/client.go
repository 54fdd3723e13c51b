package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sessions live 30 days; each successful lookup refreshes the TTL.
const SessionTTL = 30 * 24 * time.Hour

const sessionKeyPrefix = "session:"

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) Put(ctx context.Context, sessionID, userID string) error {
	return c.cli.Set(ctx, sessionKeyPrefix+sessionID, userID, SessionTTL).Err()
}

func (c *Client) UserID(ctx context.Context, sessionID string) (string, error) {
	key := sessionKeyPrefix + sessionID
	val, err := c.cli.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	c.cli.Expire(ctx, key, SessionTTL)
	return val, nil
}

func (c *Client) Delete(ctx context.Context, sessionID string) error {
	return c.cli.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

// FlushDB clears the current Redis database (test/restart resets).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
