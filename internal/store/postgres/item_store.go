package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boogiefi/marketd/internal/domain"
)

// ItemStore implements domain.ItemStore using PostgreSQL.
type ItemStore struct {
	pool *pgxpool.Pool
}

// NewItemStore creates a new ItemStore backed by the given connection pool.
func NewItemStore(pool *pgxpool.Pool) *ItemStore {
	return &ItemStore{pool: pool}
}

const itemSelectCols = `asset_id, seller, price::text, sold, holder, escrow::text`

const itemUpsertQuery = `
	INSERT INTO items (asset_id, seller, price, sold, holder, escrow, updated_at)
	VALUES ($1, $2, $3::numeric, $4, $5, $6::numeric, NOW())
	ON CONFLICT (asset_id) DO UPDATE SET
		seller = EXCLUDED.seller,
		price = EXCLUDED.price,
		sold = EXCLUDED.sold,
		holder = EXCLUDED.holder,
		escrow = EXCLUDED.escrow,
		updated_at = NOW()`

func itemArgs(rec domain.ItemRecord) []any {
	escrow := "0"
	if rec.Escrow != nil {
		escrow = rec.Escrow.String()
	}
	return []any{
		int64(rec.Item.AssetID),
		rec.Item.Seller.Hex(),
		rec.Item.Price.String(),
		rec.Item.Sold,
		rec.Holder.String(),
		escrow,
	}
}

func scanItemRow(row pgx.Row) (domain.ItemRecord, error) {
	var (
		rec     domain.ItemRecord
		assetID int64
		seller  string
		price   string
		holder  string
		escrow  string
	)
	if err := row.Scan(&assetID, &seller, &price, &rec.Item.Sold, &holder, &escrow); err != nil {
		return domain.ItemRecord{}, err
	}

	rec.Item.AssetID = uint64(assetID)
	rec.Item.Seller = common.HexToAddress(seller)

	var ok bool
	if rec.Item.Price, ok = new(big.Int).SetString(price, 10); !ok {
		return domain.ItemRecord{}, fmt.Errorf("postgres: corrupt price %q for asset %d", price, assetID)
	}
	if rec.Escrow, ok = new(big.Int).SetString(escrow, 10); !ok {
		return domain.ItemRecord{}, fmt.Errorf("postgres: corrupt escrow %q for asset %d", escrow, assetID)
	}
	if err := rec.Holder.UnmarshalText([]byte(holder)); err != nil {
		return domain.ItemRecord{}, fmt.Errorf("postgres: corrupt holder for asset %d: %w", assetID, err)
	}
	return rec, nil
}

// Upsert writes or replaces the mirror row for one listing.
func (s *ItemStore) Upsert(ctx context.Context, rec domain.ItemRecord) error {
	if _, err := s.pool.Exec(ctx, itemUpsertQuery, itemArgs(rec)...); err != nil {
		return fmt.Errorf("postgres: upsert item %d: %w", rec.Item.AssetID, err)
	}
	return nil
}

// UpsertBatch writes multiple mirror rows efficiently using pgx Batch. Used
// at genesis to seed the whole catalogue in one round trip.
func (s *ItemStore) UpsertBatch(ctx context.Context, recs []domain.ItemRecord) error {
	if len(recs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(itemUpsertQuery, itemArgs(rec)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert item batch entry %d: %w", i, err)
		}
	}
	return nil
}

// GetByID returns the mirror row for one asset, or domain.ErrNotFound.
func (s *ItemStore) GetByID(ctx context.Context, assetID uint64) (domain.ItemRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemSelectCols+` FROM items WHERE asset_id = $1`, int64(assetID))

	rec, err := scanItemRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ItemRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ItemRecord{}, fmt.Errorf("postgres: get item %d: %w", assetID, err)
	}
	return rec, nil
}

// List returns all mirror rows in asset id order.
func (s *ItemStore) List(ctx context.Context) ([]domain.ItemRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemSelectCols+` FROM items ORDER BY asset_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list items: %w", err)
	}
	defer rows.Close()

	var recs []domain.ItemRecord
	for rows.Next() {
		rec, err := scanItemRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count returns the number of mirror rows.
func (s *ItemStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count items: %w", err)
	}
	return n, nil
}
