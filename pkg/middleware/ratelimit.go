package middleware

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig defines a fixed window rate limit.
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the length of the counting window
	WindowDuration time.Duration
}

// DefaultRateLimitConfig returns the limit for anonymous callers.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
	}
}

// PerUserRateLimitConfig returns the limit for authenticated users.
func PerUserRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 1000,
		WindowDuration:    time.Minute,
	}
}

// ExportRateLimitConfig returns the limit for export runs. An export
// walks the full member table for its region, so the window is
// deliberately tight.
func ExportRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Hour,
	}
}

// Limiter is a fixed window request counter keyed by caller.
type Limiter interface {
	// Allow counts a request against key and reports whether it stays
	// within the limit.
	Allow(ctx context.Context, key string) (bool, error)

	// Remaining reports how many requests key has left in the window.
	Remaining(ctx context.Context, key string) (int, error)

	// TTL reports the time until key's window resets.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Config returns the limit this limiter enforces.
	Config() *RateLimitConfig
}

// memoryLimiterSweepSize triggers a sweep of expired windows once the
// key map grows past it.
const memoryLimiterSweepSize = 10000

// MemoryRateLimiter is the in-process Limiter for setups without Redis.
// Counters are per instance, so effective limits multiply by the number
// of portal instances behind the balancer.
type MemoryRateLimiter struct {
	config *RateLimitConfig

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemoryRateLimiter creates an in-process limiter.
func NewMemoryRateLimiter(config *RateLimitConfig) *MemoryRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &MemoryRateLimiter{
		config:  config,
		windows: make(map[string]*window),
	}
}

func (rl *MemoryRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		rl.windows[key] = &window{count: 1, resetAt: now.Add(rl.config.WindowDuration)}
		if len(rl.windows) > memoryLimiterSweepSize {
			rl.sweepLocked(now)
		}
		return true, nil
	}

	w.count++
	return w.count <= rl.config.RequestsPerWindow, nil
}

func (rl *MemoryRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || time.Now().After(w.resetAt) {
		return rl.config.RequestsPerWindow, nil
	}

	remaining := rl.config.RequestsPerWindow - w.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (rl *MemoryRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok {
		return 0, nil
	}

	ttl := time.Until(w.resetAt)
	if ttl < 0 {
		ttl = 0
	}
	return ttl, nil
}

func (rl *MemoryRateLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Reset clears the counter for a key.
func (rl *MemoryRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.windows, key)
}

func (rl *MemoryRateLimiter) sweepLocked(now time.Time) {
	for key, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}
