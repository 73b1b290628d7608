package ratelimit

import (
	"time"
)

const DefaultCategory = "default"

// Config holds the configuration for rate limiting
type Config struct {
	// Limits per endpoint category
	DefaultLimits map[string]RateLimit `json:"defaultLimits"`

	// Maps "METHOD:/route/template" to a category
	Endpoints map[string]string `json:"endpoints"`

	// Redis key prefix for rate limiting data
	RedisKeyPrefix string `json:"redisKeyPrefix"`

	// How often idle in-memory buckets are dropped
	CleanupInterval time.Duration `json:"cleanupInterval"`

	Enabled bool `json:"enabled"`
}

// DefaultConfig returns a default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultLimits: map[string]RateLimit{
			"alerts_read":   {RequestsPerMinute: 200, BurstSize: 50, WindowSize: time.Minute},
			"alerts_create": {RequestsPerMinute: 20, BurstSize: 5, WindowSize: time.Minute},
			"alerts_update": {RequestsPerMinute: 30, BurstSize: 10, WindowSize: time.Minute},
			"alerts_delete": {RequestsPerMinute: 10, BurstSize: 5, WindowSize: time.Minute},
			"media":         {RequestsPerMinute: 300, BurstSize: 100, WindowSize: time.Minute},
			DefaultCategory: {RequestsPerMinute: 60, BurstSize: 15, WindowSize: time.Minute},
		},
		Endpoints: map[string]string{
			"GET:/api/alerts":        "alerts_read",
			"GET:/api/alerts/mine":   "alerts_read",
			"GET:/api/alerts/:id":    "alerts_read",
			"POST:/api/alerts":       "alerts_create",
			"PUT:/api/alerts/:id":    "alerts_update",
			"DELETE:/api/alerts/:id": "alerts_delete",
			"GET:/uploads/:name":     "media",
		},
		RedisKeyPrefix:  "ratelimit:",
		CleanupInterval: 5 * time.Minute,
		Enabled:         true,
	}
}

// Category maps a request method and gin route template to a limit category.
func (c *Config) Category(method, route string) string {
	if category, ok := c.Endpoints[method+":"+route]; ok {
		return category
	}
	return DefaultCategory
}

// Limit returns the limit for a category, falling back to the default one.
func (c *Config) Limit(category string) RateLimit {
	if limit, ok := c.DefaultLimits[category]; ok {
		return limit
	}
	if limit, ok := c.DefaultLimits[DefaultCategory]; ok {
		return limit
	}
	return RateLimit{RequestsPerMinute: 60, BurstSize: 15, WindowSize: time.Minute}
}
