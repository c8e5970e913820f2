package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentinel-systems/secmon/internal/metrics"
)

// RedisLimiter implements sliding-window rate limiting backed by Redis,
// for deployments running more than one secmon instance behind a balancer.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(redisURL string, limit int, window time.Duration) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}, nil
}

// slidingWindowScript removes expired entries, counts the remainder, and
// admits the request atomically.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

local current = redis.call('ZCARD', key)

if current < limit then
	redis.call('ZADD', key, now, now)
	redis.call('EXPIRE', key, ttl)
	return 1
else
	return 0
end
`

// Allow implements RateLimiter.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - r.window.Nanoseconds()
	ttl := int64(r.window.Seconds()) + 1

	result, err := r.client.Eval(ctx, slidingWindowScript,
		[]string{"ratelimit:" + key}, now, windowStart, r.limit, ttl).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitHits.WithLabelValues(key).Inc()
	}
	return allowed, nil
}

// Close releases the Redis connection.
func (r *RedisLimiter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
