package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boogiefi/marketd/internal/domain"
)

const (
	unsoldKey  = "listings:unsold"
	defaultTTL = 30 * time.Second
)

// ListingCache implements domain.ListingCache using a single Redis string key
// holding the JSON-serialized unsold listings. The TTL is short because the
// ledger invalidates on every mutation anyway; expiry only covers missed
// invalidations.
type ListingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewListingCache creates a ListingCache backed by the given Client. A ttl of
// zero selects the default of 30 seconds.
func NewListingCache(c *Client, ttl time.Duration) *ListingCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ListingCache{rdb: c.Underlying(), ttl: ttl}
}

// GetUnsold returns the cached unsold listings, or domain.ErrNotFound on a
// cache miss.
func (lc *ListingCache) GetUnsold(ctx context.Context) ([]domain.MarketItem, error) {
	data, err := lc.rdb.Get(ctx, unsoldKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get unsold listings: %w", err)
	}

	var items []domain.MarketItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("redis: unmarshal unsold listings: %w", err)
	}
	return items, nil
}

// SetUnsold stores the unsold listings snapshot with the configured TTL.
func (lc *ListingCache) SetUnsold(ctx context.Context, items []domain.MarketItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("redis: marshal unsold listings: %w", err)
	}
	if err := lc.rdb.Set(ctx, unsoldKey, data, lc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set unsold listings: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot. Called after every buy, resell, and
// fee change.
func (lc *ListingCache) Invalidate(ctx context.Context) error {
	if err := lc.rdb.Del(ctx, unsoldKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate unsold listings: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ListingCache = (*ListingCache)(nil)
