package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boogiefi/marketd/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const eventSelectCols = `id, kind, asset_id, seller, buyer, price::text, occurred_at`

func scanEventRows(rows pgx.Rows) ([]domain.LedgerEvent, error) {
	var events []domain.LedgerEvent
	for rows.Next() {
		var (
			ev      domain.LedgerEvent
			kind    string
			assetID *int64
			seller  string
			buyer   string
			price   string
		)
		if err := rows.Scan(&ev.ID, &kind, &assetID, &seller, &buyer, &price, &ev.At); err != nil {
			return nil, err
		}

		ev.Kind = domain.EventKind(kind)
		if assetID != nil {
			id := uint64(*assetID)
			ev.AssetID = &id
		}
		ev.Seller = common.HexToAddress(seller)
		ev.Buyer = common.HexToAddress(buyer)

		var ok bool
		if ev.Price, ok = new(big.Int).SetString(price, 10); !ok {
			return nil, fmt.Errorf("postgres: corrupt price %q for event %s", price, ev.ID)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Insert appends one event to the log. Replays of an already recorded event
// id are silently skipped.
func (s *EventStore) Insert(ctx context.Context, ev domain.LedgerEvent) error {
	price := "0"
	if ev.Price != nil {
		price = ev.Price.String()
	}
	// asset_id is NULL for events not tied to a specific asset (fee updates).
	var assetID *int64
	if ev.AssetID != nil {
		id := int64(*ev.AssetID)
		assetID = &id
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_events (id, kind, asset_id, seller, buyer, price, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, string(ev.Kind), assetID,
		ev.Seller.Hex(), ev.Buyer.Hex(), price, ev.At,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert event %s: %w", ev.ID, err)
	}
	return nil
}

// ListRecent returns the most recent events, newest first.
func (s *EventStore) ListRecent(ctx context.Context, limit int) ([]domain.LedgerEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventSelectCols+` FROM ledger_events ORDER BY occurred_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent events: %w", err)
	}
	defer rows.Close()

	events, err := scanEventRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent events: %w", err)
	}
	return events, nil
}

// ListBefore returns all events strictly before the given time, oldest first
// (for archiving).
func (s *EventStore) ListBefore(ctx context.Context, before time.Time) ([]domain.LedgerEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventSelectCols+` FROM ledger_events WHERE occurred_at < $1 ORDER BY occurred_at ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events before: %w", err)
	}
	defer rows.Close()

	events, err := scanEventRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan events before: %w", err)
	}
	return events, nil
}

// DeleteBefore deletes all events before the given time. Returns the number
// deleted.
func (s *EventStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM ledger_events WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete events before: %w", err)
	}
	return tag.RowsAffected(), nil
}
