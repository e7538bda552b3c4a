// Package service hosts the marketplace core behind a single lock and wires
// its state transitions to the durable mirror, the listing cache, the signal
// bus, and operator notifications. The core itself carries no locking; this
// layer guarantees each call runs serially and in isolation.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/boogiefi/marketd/internal/bank"
	"github.com/boogiefi/marketd/internal/domain"
	"github.com/boogiefi/marketd/internal/ledger"
	"github.com/boogiefi/marketd/internal/notify"
)

// EventsChannel is the signal bus channel carrying serialized ledger events.
const EventsChannel = "ledger.events"

// LedgerService exposes the marketplace operations. Mutations run under the
// write lock, and the durable-mirror write happens before the lock is
// released so mirror rows can never land out of commit order. Cache, bus, and
// notifier updates are best-effort after unlock (the in-memory ledger stays
// authoritative, so a mirror failure is logged, not rolled back).
type LedgerService struct {
	mu     sync.RWMutex
	ledger *ledger.Ledger
	bank   *bank.Bank

	items    domain.ItemStore
	events   domain.EventStore
	fees     domain.FeeStore
	cache    domain.ListingCache
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewLedgerService creates a LedgerService around an initialized ledger core.
func NewLedgerService(
	l *ledger.Ledger,
	b *bank.Bank,
	items domain.ItemStore,
	events domain.EventStore,
	fees domain.FeeStore,
	cache domain.ListingCache,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		ledger:   l,
		bank:     b,
		items:    items,
		events:   events,
		fees:     fees,
		cache:    cache,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "ledger_service")),
	}
}

// Info is the catalogue summary served by the info endpoint.
type Info struct {
	Name          string   `json:"name"`
	Symbol        string   `json:"symbol"`
	BaseURI       string   `json:"base_uri"`
	RoyaltyFee    *big.Int `json:"royalty_fee"`
	ItemCount     int      `json:"item_count"`
	EscrowedTotal *big.Int `json:"escrowed_total"`
	HeldBalance   *big.Int `json:"held_balance"`
}

// Info returns the catalogue summary.
func (s *LedgerService) Info(ctx context.Context) Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		Name:          s.ledger.Name(),
		Symbol:        s.ledger.Symbol(),
		BaseURI:       s.ledger.BaseURI(),
		RoyaltyFee:    s.ledger.RoyaltyFee(),
		ItemCount:     s.ledger.ItemCount(),
		EscrowedTotal: s.ledger.EscrowedTotal(),
		HeldBalance:   s.ledger.HeldBalance(),
	}
}

// Item returns the full record for one listing.
func (s *LedgerService) Item(ctx context.Context, id uint64) (domain.ItemRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Record(id)
}

// Items returns records for the whole catalogue.
func (s *LedgerService) Items(ctx context.Context) []domain.ItemRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Records()
}

// Unsold returns all items still up for sale, serving from the listing cache
// when possible. Cache failures fall through to the ledger.
func (s *LedgerService) Unsold(ctx context.Context) []domain.MarketItem {
	if items, err := s.cache.GetUnsold(ctx); err == nil {
		return items
	}

	s.mu.RLock()
	items := make([]domain.MarketItem, 0)
	for item := range s.ledger.Unsold() {
		items = append(items, item)
	}
	s.mu.RUnlock()

	if err := s.cache.SetUnsold(ctx, items); err != nil {
		s.logger.WarnContext(ctx, "listing cache set failed",
			slog.String("error", err.Error()),
		)
	}
	return items
}

// TokensOf returns the items the account holds or has actively listed.
func (s *LedgerService) TokensOf(ctx context.Context, acct common.Address) []domain.MarketItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.MarketItem, 0)
	for item := range s.ledger.TokensOf(acct) {
		items = append(items, item)
	}
	return items
}

// OwnerOf returns the current custody of an asset together with its metadata
// location.
func (s *LedgerService) OwnerOf(ctx context.Context, id uint64) (domain.Custody, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	holder, err := s.ledger.OwnerOf(id)
	if err != nil {
		return domain.Custody{}, "", err
	}
	uri, err := s.ledger.MetadataURI(id)
	if err != nil {
		return domain.Custody{}, "", err
	}
	return holder, uri, nil
}

// Balance returns the spendable currency balance of an external account.
func (s *LedgerService) Balance(ctx context.Context, acct common.Address) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bank.Balance(domain.AccountCustody(acct))
}

// Deposit credits spendable currency to an external account.
func (s *LedgerService) Deposit(ctx context.Context, acct common.Address, amount *big.Int) error {
	if acct == (common.Address{}) {
		return fmt.Errorf("service: deposit: account is unset")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.bank.Deposit(domain.AccountCustody(acct), amount); err != nil {
		return fmt.Errorf("service: deposit: %w", err)
	}
	return nil
}

// Buy completes a listing on behalf of the buyer and returns the recorded
// purchase event.
func (s *LedgerService) Buy(ctx context.Context, id uint64, payment *big.Int, buyer common.Address) (domain.LedgerEvent, error) {
	s.mu.Lock()
	bought, err := s.ledger.Buy(id, payment, buyer)
	if err != nil {
		s.mu.Unlock()
		return domain.LedgerEvent{}, err
	}
	if rec, err := s.ledger.Record(id); err == nil {
		s.mirrorItem(ctx, rec)
	}
	s.mu.Unlock()

	ev := domain.LedgerEvent{
		ID:      uuid.NewString(),
		Kind:    domain.EventItemBought,
		AssetID: &bought.AssetID,
		Seller:  bought.Seller,
		Buyer:   bought.Buyer,
		Price:   bought.Price,
		At:      time.Now().UTC(),
	}

	s.commitEvent(ctx, ev)
	return ev, nil
}

// Resell relists a bought asset on behalf of its holder and returns the
// recorded relisting event.
func (s *LedgerService) Resell(ctx context.Context, id uint64, newPrice, royalty *big.Int, relister common.Address) (domain.LedgerEvent, error) {
	s.mu.Lock()
	relisted, err := s.ledger.Resell(id, newPrice, royalty, relister)
	if err != nil {
		s.mu.Unlock()
		return domain.LedgerEvent{}, err
	}
	if rec, err := s.ledger.Record(id); err == nil {
		s.mirrorItem(ctx, rec)
	}
	s.mu.Unlock()

	ev := domain.LedgerEvent{
		ID:      uuid.NewString(),
		Kind:    domain.EventItemRelisted,
		AssetID: &relisted.AssetID,
		Seller:  relisted.Seller,
		Price:   relisted.Price,
		At:      time.Now().UTC(),
	}

	s.commitEvent(ctx, ev)
	return ev, nil
}

// UpdateRoyaltyFee changes the royalty rate applied to future listings. Only
// the admin may call it; already-escrowed listings are unaffected.
func (s *LedgerService) UpdateRoyaltyFee(ctx context.Context, caller common.Address, newFee *big.Int) (domain.LedgerEvent, error) {
	s.mu.Lock()
	if err := s.ledger.UpdateRoyaltyFee(caller, newFee); err != nil {
		s.mu.Unlock()
		return domain.LedgerEvent{}, err
	}
	if err := s.fees.Set(ctx, newFee.String()); err != nil {
		s.logger.WarnContext(ctx, "fee persist failed",
			slog.String("error", err.Error()),
		)
	}
	s.mu.Unlock()

	ev := domain.LedgerEvent{
		ID:    uuid.NewString(),
		Kind:  domain.EventFeeUpdated,
		Price: new(big.Int).Set(newFee),
		At:    time.Now().UTC(),
	}
	s.commitEvent(ctx, ev)
	return ev, nil
}

// RecentEvents returns the most recent persisted ledger events, newest first.
func (s *LedgerService) RecentEvents(ctx context.Context, limit int) ([]domain.LedgerEvent, error) {
	return s.events.ListRecent(ctx, limit)
}

// SeedMirror pushes the full ledger state into the durable mirror. Called
// once after genesis so a later restart can restore from the store.
func (s *LedgerService) SeedMirror(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.ledger.Records()
	fee := s.ledger.RoyaltyFee()

	if err := s.items.UpsertBatch(ctx, recs); err != nil {
		return fmt.Errorf("service: seed mirror: %w", err)
	}
	if err := s.fees.Set(ctx, fee.String()); err != nil {
		return fmt.Errorf("service: seed fee: %w", err)
	}
	return nil
}

// mirrorItem writes one listing record to the durable mirror. Failures are
// logged, not rolled back; the in-memory ledger stays authoritative.
func (s *LedgerService) mirrorItem(ctx context.Context, rec domain.ItemRecord) {
	if err := s.items.Upsert(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "item mirror failed",
			slog.Uint64("asset_id", rec.Item.AssetID),
			slog.String("error", err.Error()),
		)
	}
}

// commitEvent persists the event, drops the stale listing cache, publishes
// the event on the signal bus, and dispatches operator notifications. All of
// it is best-effort.
func (s *LedgerService) commitEvent(ctx context.Context, ev domain.LedgerEvent) {
	if err := s.events.Insert(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "event persist failed",
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "listing cache invalidate failed",
			slog.String("error", err.Error()),
		)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "event marshal failed",
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.bus.Publish(ctx, EventsChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
	}

	if s.notifier != nil {
		title, message := notify.FormatEvent(ev)
		if err := s.notifier.Notify(ctx, string(ev.Kind), title, message); err != nil {
			s.logger.WarnContext(ctx, "notification failed",
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	attrs := []any{
		slog.String("event_id", ev.ID),
		slog.String("kind", string(ev.Kind)),
	}
	if ev.AssetID != nil {
		attrs = append(attrs, slog.Uint64("asset_id", *ev.AssetID))
	}
	s.logger.InfoContext(ctx, "ledger event", attrs...)
}
