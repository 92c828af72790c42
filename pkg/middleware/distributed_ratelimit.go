package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hdcn/ledenportaal/pkg/contextkeys"
	"github.com/hdcn/ledenportaal/pkg/httputil"
	"github.com/hdcn/ledenportaal/pkg/observability"
	"github.com/hdcn/ledenportaal/pkg/storage"
)

// DistributedRateLimiter counts requests in Redis so limits hold across
// portal instances.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a Redis-backed limiter. Keys are
// namespaced under prefix ("ratelimit" when empty).
func NewDistributedRateLimiter(client *storage.RedisClient, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  client.GetClient(),
		config: config,
		prefix: prefix,
	}
}

// Allow counts a request against key. On Redis errors it reports the
// request as allowed together with the error so callers can fail open.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.prefix + ":" + key

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	// The expiry is armed only when the counter is created, so a steady
	// trickle of requests cannot extend the window forever.
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return true, fmt.Errorf("redis error: %w", err)
		}
	}

	return count <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining returns the number of requests key has left in the window.
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := rl.prefix + ":" + key

	count, err := rl.redis.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TTL returns the time until key's window resets.
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.prefix+":"+key).Result()
}

// Reset clears the counter for a key.
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.prefix+":"+key).Err()
}

// Config returns the limit this limiter enforces.
func (rl *DistributedRateLimiter) Config() *RateLimitConfig {
	return rl.config
}

// RateLimitMiddleware applies per-caller limits: authenticated users
// are keyed by user ID, anonymous callers by client IP. Export routes
// carry their own much tighter limiter via ForExports.
type RateLimitMiddleware struct {
	user     Limiter
	anon     Limiter
	exports  Limiter
	failOpen bool
}

// NewRateLimitMiddleware creates Redis-backed limits shared across
// portal instances.
func NewRateLimitMiddleware(client *storage.RedisClient) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		user:     NewDistributedRateLimiter(client, PerUserRateLimitConfig(), "ratelimit:user"),
		anon:     NewDistributedRateLimiter(client, DefaultRateLimitConfig(), "ratelimit:anon"),
		exports:  NewDistributedRateLimiter(client, ExportRateLimitConfig(), "ratelimit:export"),
		failOpen: true,
	}
}

// NewMemoryRateLimitMiddleware creates in-process limits for setups
// without Redis.
func NewMemoryRateLimitMiddleware() *RateLimitMiddleware {
	return &RateLimitMiddleware{
		user:     NewMemoryRateLimiter(PerUserRateLimitConfig()),
		anon:     NewMemoryRateLimiter(DefaultRateLimitConfig()),
		exports:  NewMemoryRateLimiter(ExportRateLimitConfig()),
		failOpen: true,
	}
}

// SetFailOpen controls whether limiter errors let requests through
// (true, the default) or return 503 (false).
func (m *RateLimitMiddleware) SetFailOpen(enabled bool) {
	m.failOpen = enabled
}

// SetUserLimit overrides how many requests an authenticated user may make
// per window. Zero or negative keeps the preset.
func (m *RateLimitMiddleware) SetUserLimit(perWindow int) {
	if perWindow <= 0 {
		return
	}
	m.user.Config().RequestsPerWindow = perWindow
}

// Handler applies the general per-caller limit.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return m.limit(next, func(r *http.Request) (Limiter, string) {
		if user := contextkeys.GetUser(r.Context()); user != nil {
			return m.user, "user:" + user.ID
		}
		return m.anon, "ip:" + clientIP(r)
	})
}

// ForExports applies the export limit, keyed by user. Anonymous callers
// are keyed by IP; the permission guard rejects them downstream anyway.
func (m *RateLimitMiddleware) ForExports(next http.Handler) http.Handler {
	return m.limit(next, func(r *http.Request) (Limiter, string) {
		if user := contextkeys.GetUser(r.Context()); user != nil {
			return m.exports, "user:" + user.ID
		}
		return m.exports, "ip:" + clientIP(r)
	})
}

func (m *RateLimitMiddleware) limit(next http.Handler, pick func(*http.Request) (Limiter, string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limiter, key := pick(r)

		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			if m.failOpen {
				observability.GetLogger(ctx).WithError(err).Warn("rate limiter unavailable, failing open")
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteServiceUnavailable(w, "rate limiter unavailable")
			return
		}

		if !allowed {
			m.rejected(ctx, w, limiter, key)
			return
		}

		m.setHeaders(ctx, w, limiter, key)
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) setHeaders(ctx context.Context, w http.ResponseWriter, limiter Limiter, key string) {
	remaining, err := limiter.Remaining(ctx, key)
	if err != nil {
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Config().RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if ttl, err := limiter.TTL(ctx, key); err == nil && ttl > 0 {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
	}
}

func (m *RateLimitMiddleware) rejected(ctx context.Context, w http.ResponseWriter, limiter Limiter, key string) {
	retryAfter := limiter.Config().WindowDuration
	if ttl, err := limiter.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = ttl
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
	}

	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Config().RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	httputil.WriteTooManyRequests(w, "rate limit exceeded")
}
