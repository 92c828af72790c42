package members

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/hdcn/ledenportaal/pkg/storage"
)

const (
	memberKeyPrefix  = "member:"
	memberListPrefix = "members:list:"
)

// CachedStore layers a Redis cache over a member store. Reads are
// cache-aside with the configured "member" and "member_list" TTLs;
// writes pass through and invalidate the affected keys. Cache failures
// never fail an operation; the store remains the source of truth.
type CachedStore struct {
	store Store
	cache *storage.RedisClient
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore creates a caching layer over the given store
func NewCachedStore(store Store, cache *storage.RedisClient) *CachedStore {
	return &CachedStore{store: store, cache: cache}
}

// Create inserts a member and invalidates cached lists
func (c *CachedStore) Create(ctx context.Context, member *Member) error {
	if err := c.store.Create(ctx, member); err != nil {
		return err
	}
	c.invalidateLists(ctx)
	return nil
}

// Get returns the member from cache when present, falling back to the
// store and repopulating the cache
func (c *CachedStore) Get(ctx context.Context, memberNumber string) (*Member, error) {
	key := memberKey(memberNumber)

	var cached Member
	if found, err := c.cache.GetJSON(ctx, key, &cached); err == nil && found {
		return &cached, nil
	}

	member, err := c.store.Get(ctx, memberNumber)
	if err != nil {
		return nil, err
	}

	_ = c.cache.SetJSON(ctx, key, member, c.cache.TTLFor("member"))
	return member, nil
}

// Update applies a partial update and invalidates the member and every
// cached list
func (c *CachedStore) Update(ctx context.Context, memberNumber string, updates *UpdateMemberRequest) error {
	if err := c.store.Update(ctx, memberNumber, updates); err != nil {
		return err
	}
	_ = c.cache.Delete(ctx, memberKey(memberNumber))
	c.invalidateLists(ctx)
	return nil
}

// Delete removes a member and invalidates the member and every cached
// list
func (c *CachedStore) Delete(ctx context.Context, memberNumber string) error {
	if err := c.store.Delete(ctx, memberNumber); err != nil {
		return err
	}
	_ = c.cache.Delete(ctx, memberKey(memberNumber))
	c.invalidateLists(ctx)
	return nil
}

// List returns members matching the filter, cached per distinct filter
func (c *CachedStore) List(ctx context.Context, filter Filter) ([]*Member, error) {
	key := listKey(filter)

	var cached []*Member
	if found, err := c.cache.GetJSON(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	result, err := c.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	_ = c.cache.SetJSON(ctx, key, result, c.cache.TTLFor("member_list"))
	return result, nil
}

// Count passes through to the store; counts are cheap relative to the
// staleness they would accumulate
func (c *CachedStore) Count(ctx context.Context, filter Filter) (int, error) {
	return c.store.Count(ctx, filter)
}

func (c *CachedStore) invalidateLists(ctx context.Context) {
	_ = c.cache.DeletePattern(ctx, memberListPrefix+"*")
}

func memberKey(memberNumber string) string {
	return memberKeyPrefix + memberNumber
}

// listKey derives a stable cache key from the filter. Regions are
// sorted so that permutations of the same accessible-region set share
// one entry.
func listKey(filter Filter) string {
	regions := make([]string, len(filter.Regions))
	for i, region := range filter.Regions {
		regions[i] = string(region)
	}
	sort.Strings(regions)

	active := "any"
	if filter.Active != nil {
		active = fmt.Sprintf("%t", *filter.Active)
	}

	canonical := strings.Join([]string{
		strings.Join(regions, ","),
		string(filter.Kind),
		active,
		strings.ToLower(filter.Search),
		fmt.Sprintf("%d:%d", filter.Limit, filter.Offset),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return memberListPrefix + hex.EncodeToString(sum[:8])
}
