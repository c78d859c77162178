// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces rate limit keys in a shared Redis.
const DefaultKeyPrefix = "tracklog:ratelimit:"

// incrementScript counts one request in the current window. The first
// increment sets the expiry so the key disappears with its window.
var incrementScript = redis.NewScript(`
local curr = redis.call('INCR', KEYS[1])
if curr == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return curr
`)

// RedisCounter implements Counter in Redis. Several application instances
// pointing at the same Redis share their budgets.
type RedisCounter struct {
	client redis.Scripter
	prefix string
}

// NewRedisCounter creates a counter on client.
func NewRedisCounter(client redis.Scripter) *RedisCounter {
	return &RedisCounter{client: client, prefix: DefaultKeyPrefix}
}

// NewRedisClient parses a redis:// URL and returns a client for it.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (c *RedisCounter) windowKey(key string, start time.Time) string {
	return c.prefix + key + ":" + strconv.FormatInt(start.Unix(), 10)
}

// IncrementAndGet implements Counter.
func (c *RedisCounter) IncrementAndGet(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	if window <= 0 {
		return 0, fmt.Errorf("invalid window %v", window)
	}
	keys := []string{c.windowKey(key, windowStart(now, window))}

	curr, err := incrementScript.Run(ctx, c.client, keys, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis increment %s: %w", key, err)
	}
	return int(curr), nil
}
