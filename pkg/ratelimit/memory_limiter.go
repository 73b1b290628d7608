package ratelimit

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// tokenBucket holds the state for one client/category pair.
type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

// MemoryRateLimiter implements RateLimiter with in-process token buckets. It
// is used when Redis is not configured.
type MemoryRateLimiter struct {
	config *Config
	stats  RateLimiterStats
	mu     sync.Mutex
	tokens map[string]*tokenBucket
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	limiter := &MemoryRateLimiter{
		config: config,
		tokens: make(map[string]*tokenBucket),
		now:    time.Now,
		stop:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go limiter.cleanupExpiredTokens()
	}

	return limiter
}

func (r *MemoryRateLimiter) Allow(clientID string, category string) (bool, time.Duration, error) {
	if !r.config.Enabled {
		return true, 0, nil
	}

	atomic.AddInt64(&r.stats.TotalRequests, 1)
	limit := r.config.Limit(category)
	key := clientID + ":" + category

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	bucket, ok := r.tokens[key]
	if !ok {
		bucket = &tokenBucket{tokens: float64(limit.BurstSize), lastSeen: now}
		r.tokens[key] = bucket
	}

	refillPerSecond := float64(limit.RequestsPerMinute) / 60
	elapsed := now.Sub(bucket.lastSeen).Seconds()
	bucket.tokens = math.Min(float64(limit.BurstSize), bucket.tokens+elapsed*refillPerSecond)
	bucket.lastSeen = now

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, 0, nil
	}

	atomic.AddInt64(&r.stats.BlockedRequests, 1)
	if refillPerSecond <= 0 {
		return false, limit.WindowSize, nil
	}
	wait := time.Duration((1 - bucket.tokens) / refillPerSecond * float64(time.Second))
	return false, wait, nil
}

func (r *MemoryRateLimiter) LimitFor(category string) RateLimit {
	return r.config.Limit(category)
}

func (r *MemoryRateLimiter) GetStats() RateLimiterStats {
	r.mu.Lock()
	active := len(r.tokens)
	r.mu.Unlock()

	return RateLimiterStats{
		TotalRequests:   atomic.LoadInt64(&r.stats.TotalRequests),
		BlockedRequests: atomic.LoadInt64(&r.stats.BlockedRequests),
		ActiveClients:   active,
	}
}

// Close stops the cleanup goroutine.
func (r *MemoryRateLimiter) Close() {
	r.once.Do(func() { close(r.stop) })
}

// cleanupExpiredTokens drops buckets that have been idle for an hour.
func (r *MemoryRateLimiter) cleanupExpiredTokens() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			now := r.now()
			for key, bucket := range r.tokens {
				if now.Sub(bucket.lastSeen) > time.Hour {
					delete(r.tokens, key)
				}
			}
			r.mu.Unlock()
		}
	}
}
