package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"safewatch-backend/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const healthCheckInterval = 30 * time.Second

type Client struct {
	client      *redis.Client
	config      config.RedisConfig
	logger      zerolog.Logger
	mu          sync.RWMutex
	isConnected bool
	ctx         context.Context
	cancel      context.CancelFunc
}

type HealthStatus struct {
	IsConnected    bool          `json:"isConnected"`
	LastPing       time.Time     `json:"lastPing"`
	ResponseTime   time.Duration `json:"responseTime"`
	ConnectionInfo string        `json:"connectionInfo"`
	Error          string        `json:"error,omitempty"`
}

// NewClient creates a pooled Redis client and starts a background health
// check. go-redis redials on its own; the loop only tracks connectivity.
func NewClient(cfg config.RedisConfig, logger zerolog.Logger) (*Client, error) {
	opt, err := options(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		client: redis.NewClient(opt),
		config: cfg,
		logger: logger.With().Str("component", "redis").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}

	status := c.HealthCheck()
	if status.IsConnected {
		c.logger.Info().Str("addr", status.ConnectionInfo).Msg("redis connected")
	} else {
		c.logger.Warn().Str("addr", status.ConnectionInfo).Str("error", status.Error).Msg("redis not reachable, will keep retrying")
	}

	go c.healthCheckLoop()
	return c, nil
}

func options(cfg config.RedisConfig) (*redis.Options, error) {
	var opt *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.MaxRetries = cfg.MaxRetries
	opt.MinRetryBackoff = cfg.RetryDelay
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	opt.PoolTimeout = cfg.PoolTimeout
	return opt, nil
}

// GetClient returns the underlying go-redis client.
func (c *Client) GetClient() *redis.Client {
	return c.client
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// HealthCheck pings Redis and records the result.
func (c *Client) HealthCheck() HealthStatus {
	status := HealthStatus{
		ConnectionInfo: c.client.Options().Addr,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	err := c.client.Ping(ctx).Err()
	status.ResponseTime = time.Since(start)
	status.LastPing = time.Now()
	status.IsConnected = err == nil
	if err != nil {
		status.Error = err.Error()
	}

	c.mu.Lock()
	c.isConnected = status.IsConnected
	c.mu.Unlock()

	return status
}

func (c *Client) healthCheckLoop() {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	wasConnected := c.IsConnected()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			status := c.HealthCheck()
			switch {
			case !status.IsConnected && wasConnected:
				c.logger.Warn().Str("error", status.Error).Msg("redis health check failed")
			case status.IsConnected && !wasConnected:
				c.logger.Info().Msg("redis connection restored")
			}
			wasConnected = status.IsConnected
		}
	}
}

// Close stops the health loop and closes the pool.
func (c *Client) Close() error {
	c.cancel()
	return c.client.Close()
}

// GetConnectionStats returns connection pool statistics
func (c *Client) GetConnectionStats() map[string]interface{} {
	stats := c.client.PoolStats()
	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"totalConns":  stats.TotalConns,
		"idleConns":   stats.IdleConns,
		"staleConns":  stats.StaleConns,
		"isConnected": c.IsConnected(),
	}
}
