package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hdcn/ledenportaal/pkg/authz"
)

const (
	// DefaultCacheSize bounds the session cache when no size is configured.
	DefaultCacheSize = 1024

	// DefaultCacheTTL bounds how long a resolved user is reused before the
	// token is parsed again. Short enough that group changes in Cognito
	// take effect promptly.
	DefaultCacheTTL = 5 * time.Minute
)

// Options configures a Manager.
type Options struct {
	// Verifier enables OIDC signature verification. When nil, tokens are
	// trusted as gateway-verified and only parsed for claims.
	Verifier *Verifier

	// CacheSize is the maximum number of cached sessions. Negative
	// disables caching; zero means DefaultCacheSize.
	CacheSize int

	// CacheTTL is how long a cached session stays valid. Zero means
	// DefaultCacheTTL.
	CacheTTL time.Duration
}

// Manager resolves bearer tokens to portal users. Resolved users are
// cached in an expirable LRU keyed by token hash so repeated requests
// from the same client skip the parse (and, when verifying, the
// signature check).
type Manager struct {
	verifier *Verifier
	cache    *lru.LRU[string, *authz.User]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	m := &Manager{verifier: opts.Verifier}

	if opts.CacheSize >= 0 {
		size := opts.CacheSize
		if size == 0 {
			size = DefaultCacheSize
		}
		ttl := opts.CacheTTL
		if ttl == 0 {
			ttl = DefaultCacheTTL
		}
		m.cache = lru.NewLRU[string, *authz.User](size, nil, ttl)
	}

	return m
}

// FromToken resolves a bearer token to a portal user.
func (m *Manager) FromToken(ctx context.Context, tokenString string) (*authz.User, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	var key string
	if m.cache != nil {
		key = hashToken(tokenString)
		if user, ok := m.cache.Get(key); ok {
			m.hits.Add(1)
			return user, nil
		}
		m.misses.Add(1)
	}

	user, err := m.resolve(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		m.cache.Add(key, user)
	}
	return user, nil
}

// FromRequest extracts the bearer token from the Authorization header and
// resolves it. Returns ErrNoToken when the header is absent or malformed.
func (m *Manager) FromRequest(r *http.Request) (*authz.User, error) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return nil, err
	}
	return m.FromToken(r.Context(), token)
}

// Verifying reports whether the manager checks token signatures.
func (m *Manager) Verifying() bool {
	return m.verifier != nil
}

// Stats returns cache hit counters and the current cache size.
func (m *Manager) Stats() (hits, misses int64, entries int) {
	hits = m.hits.Load()
	misses = m.misses.Load()
	if m.cache != nil {
		entries = m.cache.Len()
	}
	return hits, misses, entries
}

// Purge drops all cached sessions. Used by tests and by operators after
// bulk role changes.
func (m *Manager) Purge() {
	if m.cache != nil {
		m.cache.Purge()
	}
}

func (m *Manager) resolve(ctx context.Context, tokenString string) (*authz.User, error) {
	if m.verifier != nil {
		return m.verifier.Verify(ctx, tokenString)
	}
	return ExtractUser(tokenString)
}

// TokenFromRequest extracts the bearer token from a request's
// Authorization header.
func TokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrNoToken
	}

	return parts[1], nil
}

// hashToken computes the SHA256 hash of a token for cache lookup, so raw
// tokens never sit in memory longer than the request.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
