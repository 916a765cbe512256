package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultChannel is the pub/sub channel cache workers subscribe to.
	DefaultChannel = "globaleaks:cache:invalidate"
	// publishTimeout caps how long a fire-and-forget publish may take.
	publishTimeout = 500 * time.Millisecond
)

// RedisInvalidator publishes invalidation tags on a redis pub/sub channel.
type RedisInvalidator struct {
	client  *redis.Client
	channel string
}

// NewRedisInvalidator connects to redis at addr and verifies the connection.
func NewRedisInvalidator(ctx context.Context, addr, channel string) (*RedisInvalidator, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisInvalidator{client: client, channel: channel}, nil
}

// Invalidate publishes resourceTag on the invalidation channel.
func (r *RedisInvalidator) Invalidate(ctx context.Context, resourceTag string) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis invalidator is not configured")
	}
	resourceTag = strings.TrimSpace(resourceTag)
	if resourceTag == "" {
		return fmt.Errorf("resource tag is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, resourceTag).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (r *RedisInvalidator) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

var _ Invalidator = (*RedisInvalidator)(nil)
