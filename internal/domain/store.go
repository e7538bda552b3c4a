package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// ItemStore mirrors the committed ledger state (listings, holders, escrow
// amounts) to durable storage. The in-memory ledger remains authoritative;
// the mirror exists so the service can rebuild the ledger across restarts
// and serve historical queries.
type ItemStore interface {
	Upsert(ctx context.Context, rec ItemRecord) error
	UpsertBatch(ctx context.Context, recs []ItemRecord) error
	GetByID(ctx context.Context, assetID uint64) (ItemRecord, error)
	List(ctx context.Context) ([]ItemRecord, error)
	Count(ctx context.Context) (int64, error)
}

// EventStore persists the append-only log of purchase and relisting records.
type EventStore interface {
	Insert(ctx context.Context, ev LedgerEvent) error
	ListRecent(ctx context.Context, limit int) ([]LedgerEvent, error)
	ListBefore(ctx context.Context, before time.Time) ([]LedgerEvent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// FeeStore persists the current royalty fee so rate changes survive a
// restart. A single row keyed by the ledger name.
type FeeStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, fee string) error
}
