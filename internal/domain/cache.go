package domain

import (
	"context"
	"time"
)

// ListingCache caches the unsold-listings read path. Mutating operations
// invalidate it; reads fall through to the ledger on a miss. Cache failures
// are never fatal.
type ListingCache interface {
	GetUnsold(ctx context.Context) ([]MarketItem, error)
	SetUnsold(ctx context.Context, items []MarketItem) error
	Invalidate(ctx context.Context) error
}

// RateLimiter bounds how often a keyed action may run within a window. Used
// by the HTTP layer for per-client request limits.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus is a lightweight pub/sub fabric carrying serialized ledger
// events to in-process subscribers such as the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel that emits payloads published to the
	// given channel until ctx is cancelled, at which point it is closed.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
