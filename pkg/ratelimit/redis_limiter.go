package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// token bucket matching MemoryRateLimiter: capacity burst_size, refilled at
// requests_per_minute. Tokens are kept in thousandths so the hash only ever
// holds integers.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local burst_size = tonumber(ARGV[1])
	local requests_per_minute = tonumber(ARGV[2])
	local window_size = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])

	local capacity = burst_size * 1000
	local tokens = tonumber(redis.call('HGET', key, 'tokens')) or capacity
	local last_refill = tonumber(redis.call('HGET', key, 'last_refill')) or now

	local elapsed = now - last_refill
	if elapsed > 0 then
		local added = math.floor(elapsed * requests_per_minute / 60)
		if added > 0 then
			tokens = math.min(capacity, tokens + added)
			last_refill = now
		end
	elseif elapsed < 0 then
		last_refill = now
	end

	local allowed = tokens >= 1000
	local wait_ms = 0
	if allowed then
		tokens = tokens - 1000
	elseif requests_per_minute > 0 then
		wait_ms = math.ceil((1000 - tokens) * 60 / requests_per_minute)
	else
		wait_ms = window_size
	end

	local ttl = window_size
	if requests_per_minute > 0 then
		ttl = math.max(ttl, math.ceil(capacity * 60 / requests_per_minute))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill', last_refill)
	redis.call('PEXPIRE', key, ttl)

	return {allowed and 1 or 0, wait_ms}
`)

// RedisRateLimiter implements RateLimiter using Redis so limits are shared
// between instances.
type RedisRateLimiter struct {
	client *redis.Client
	config *Config
	stats  RateLimiterStats
	now    func() time.Time
}

func NewRedisRateLimiter(client *redis.Client, config *Config) *RedisRateLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	return &RedisRateLimiter{
		client: client,
		config: config,
		now:    time.Now,
	}
}

func (r *RedisRateLimiter) Allow(clientID string, category string) (bool, time.Duration, error) {
	if !r.config.Enabled {
		return true, 0, nil
	}

	atomic.AddInt64(&r.stats.TotalRequests, 1)

	limit := r.config.Limit(category)
	key := fmt.Sprintf("%s%s:%s", r.config.RedisKeyPrefix, clientID, category)

	allowed, resetTime, err := r.checkTokenBucket(key, limit)
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}

	if !allowed {
		atomic.AddInt64(&r.stats.BlockedRequests, 1)
		return false, resetTime, nil
	}

	return true, 0, nil
}

func (r *RedisRateLimiter) checkTokenBucket(key string, limit RateLimit) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := tokenBucketScript.Run(ctx, r.client, []string{key},
		limit.BurstSize,
		limit.RequestsPerMinute,
		limit.WindowSize.Milliseconds(),
		r.now().UnixMilli()).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("unexpected script result format")
	}

	return result[0] == 1, time.Duration(result[1]) * time.Millisecond, nil
}

func (r *RedisRateLimiter) LimitFor(category string) RateLimit {
	return r.config.Limit(category)
}

func (r *RedisRateLimiter) GetStats() RateLimiterStats {
	return RateLimiterStats{
		TotalRequests:   atomic.LoadInt64(&r.stats.TotalRequests),
		BlockedRequests: atomic.LoadInt64(&r.stats.BlockedRequests),
	}
}
