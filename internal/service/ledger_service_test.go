package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/boogiefi/marketd/internal/bank"
	"github.com/boogiefi/marketd/internal/domain"
	"github.com/boogiefi/marketd/internal/ledger"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	artist   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	buyer1   = common.HexToAddress("0x0000000000000000000000000000000000000111")
	buyer2   = common.HexToAddress("0x0000000000000000000000000000000000000222")
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func centiEth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e16))
}

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakeItemStore struct {
	mu   sync.Mutex
	recs map[uint64]domain.ItemRecord
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{recs: make(map[uint64]domain.ItemRecord)}
}

func (s *fakeItemStore) Upsert(_ context.Context, rec domain.ItemRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.Item.AssetID] = rec
	return nil
}

func (s *fakeItemStore) UpsertBatch(ctx context.Context, recs []domain.ItemRecord) error {
	for _, rec := range recs {
		if err := s.Upsert(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeItemStore) GetByID(_ context.Context, assetID uint64) (domain.ItemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[assetID]
	if !ok {
		return domain.ItemRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *fakeItemStore) List(_ context.Context) ([]domain.ItemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ItemRecord, 0, len(s.recs))
	for id := uint64(0); id < uint64(len(s.recs)); id++ {
		out = append(out, s.recs[id])
	}
	return out, nil
}

func (s *fakeItemStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.recs)), nil
}

type fakeEventStore struct {
	mu  sync.Mutex
	evs []domain.LedgerEvent
}

func (s *fakeEventStore) Insert(_ context.Context, ev domain.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evs = append(s.evs, ev)
	return nil
}

func (s *fakeEventStore) ListRecent(_ context.Context, limit int) ([]domain.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LedgerEvent, 0, limit)
	for i := len(s.evs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.evs[i])
	}
	return out, nil
}

func (s *fakeEventStore) ListBefore(_ context.Context, before time.Time) ([]domain.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LedgerEvent
	for _, ev := range s.evs {
		if ev.At.Before(before) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeEventStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.LedgerEvent
	var removed int64
	for _, ev := range s.evs {
		if ev.At.Before(before) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	s.evs = kept
	return removed, nil
}

type fakeFeeStore struct {
	mu  sync.Mutex
	fee string
}

func (s *fakeFeeStore) Get(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fee == "" {
		return "", domain.ErrNotFound
	}
	return s.fee, nil
}

func (s *fakeFeeStore) Set(_ context.Context, fee string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fee = fee
	return nil
}

type fakeListingCache struct {
	mu          sync.Mutex
	items       []domain.MarketItem
	primed      bool
	invalidated int
}

func (c *fakeListingCache) GetUnsold(_ context.Context) ([]domain.MarketItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.primed {
		return nil, domain.ErrNotFound
	}
	return c.items, nil
}

func (c *fakeListingCache) SetUnsold(_ context.Context, items []domain.MarketItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.primed = true
	return nil
}

func (c *fakeListingCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.primed = false
	c.invalidated++
	return nil
}

type fakeSignalBus struct {
	mu       sync.Mutex
	payloads map[string][][]byte
}

func newFakeSignalBus() *fakeSignalBus {
	return &fakeSignalBus{payloads: make(map[string][][]byte)}
}

func (b *fakeSignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads[channel] = append(b.payloads[channel], payload)
	return nil
}

func (b *fakeSignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	svc    *LedgerService
	bank   *bank.Bank
	items  *fakeItemStore
	events *fakeEventStore
	fees   *fakeFeeStore
	cache  *fakeListingCache
	bus    *fakeSignalBus
}

// newFixture deploys a two-item catalogue priced 1 and 2 ether with a 0.01
// ether royalty fee and wraps it in a service backed by in-memory fakes.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	b := bank.New()
	for _, acct := range []common.Address{deployer, buyer1, buyer2} {
		if err := b.Deposit(domain.AccountCustody(acct), eth(10)); err != nil {
			t.Fatalf("fund %s: %v", acct.Hex(), err)
		}
	}

	core, err := ledger.New(ledger.Params{
		Name:        "BoogieFi",
		Symbol:      "BooFi",
		BaseURI:     "ipfs://catalogue/",
		RoyaltyFee:  centiEth(1),
		Beneficiary: artist,
		Admin:       deployer,
		Deployer:    deployer,
		Prices:      []*big.Int{eth(1), eth(2)},
		Deposit:     centiEth(2),
	}, b)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	f := &fixture{
		bank:   b,
		items:  newFakeItemStore(),
		events: &fakeEventStore{},
		fees:   &fakeFeeStore{},
		cache:  &fakeListingCache{},
		bus:    newFakeSignalBus(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewLedgerService(core, b, f.items, f.events, f.fees, f.cache, f.bus, nil, logger)
	return f
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestInfo_ReportsCatalogueSummary(t *testing.T) {
	f := newFixture(t)

	info := f.svc.Info(t.Context())
	if info.Name != "BoogieFi" || info.Symbol != "BooFi" {
		t.Fatalf("info = %+v", info)
	}
	if info.ItemCount != 2 {
		t.Fatalf("item count = %d, want 2", info.ItemCount)
	}
	if info.EscrowedTotal.Cmp(centiEth(2)) != 0 {
		t.Fatalf("escrowed total = %s, want %s", info.EscrowedTotal, centiEth(2))
	}
	if info.HeldBalance.Cmp(info.EscrowedTotal) != 0 {
		t.Fatalf("held balance %s != escrowed total %s", info.HeldBalance, info.EscrowedTotal)
	}
}

func TestBuy_EmitsEventAndMirrors(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	ev, err := f.svc.Buy(ctx, 0, eth(1), buyer1)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if ev.ID == "" {
		t.Fatal("event id is empty")
	}
	if ev.Kind != domain.EventItemBought {
		t.Fatalf("kind = %q", ev.Kind)
	}
	if ev.Buyer != buyer1 || ev.Seller != deployer {
		t.Fatalf("parties = seller %s buyer %s", ev.Seller.Hex(), ev.Buyer.Hex())
	}
	if ev.AssetID == nil || *ev.AssetID != 0 {
		t.Fatalf("asset id = %v, want 0", ev.AssetID)
	}
	if ev.Price.Cmp(eth(1)) != 0 {
		t.Fatalf("price = %s", ev.Price)
	}

	rec, err := f.items.GetByID(ctx, 0)
	if err != nil {
		t.Fatalf("mirror row missing: %v", err)
	}
	if !rec.Item.Sold {
		t.Fatal("mirrored item still marked unsold")
	}
	if rec.Holder != domain.AccountCustody(buyer1) {
		t.Fatalf("mirrored holder = %s", rec.Holder)
	}

	persisted, err := f.events.ListRecent(ctx, 10)
	if err != nil || len(persisted) != 1 {
		t.Fatalf("persisted events = %d (%v)", len(persisted), err)
	}
	if persisted[0].ID != ev.ID {
		t.Fatalf("persisted id = %s, want %s", persisted[0].ID, ev.ID)
	}

	if got := len(f.bus.payloads[EventsChannel]); got != 1 {
		t.Fatalf("bus publishes = %d, want 1", got)
	}
	if f.cache.invalidated == 0 {
		t.Fatal("listing cache was not invalidated")
	}
}

func TestBuy_RejectionLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if _, err := f.svc.Buy(ctx, 0, eth(3), buyer1); !errors.Is(err, domain.ErrWrongPayment) {
		t.Fatalf("err = %v, want ErrWrongPayment", err)
	}

	if n, _ := f.events.ListRecent(ctx, 10); len(n) != 0 {
		t.Fatalf("events persisted after rejection: %d", len(n))
	}
	if len(f.bus.payloads[EventsChannel]) != 0 {
		t.Fatal("bus publish after rejection")
	}
	if _, err := f.items.GetByID(ctx, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("mirror written after rejection")
	}
}

func TestResell_EmitsEventAndMirrorsNewListing(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if _, err := f.svc.Buy(ctx, 0, eth(1), buyer1); err != nil {
		t.Fatalf("buy: %v", err)
	}

	ev, err := f.svc.Resell(ctx, 0, eth(4), centiEth(1), buyer1)
	if err != nil {
		t.Fatalf("resell: %v", err)
	}
	if ev.Kind != domain.EventItemRelisted {
		t.Fatalf("kind = %q", ev.Kind)
	}
	if ev.Seller != buyer1 {
		t.Fatalf("seller = %s", ev.Seller.Hex())
	}
	if ev.Price.Cmp(eth(4)) != 0 {
		t.Fatalf("price = %s", ev.Price)
	}

	rec, err := f.items.GetByID(ctx, 0)
	if err != nil {
		t.Fatalf("mirror row missing: %v", err)
	}
	if rec.Item.Sold {
		t.Fatal("mirrored item still marked sold after relisting")
	}
	if rec.Item.Price.Cmp(eth(4)) != 0 {
		t.Fatalf("mirrored price = %s", rec.Item.Price)
	}
	if rec.Holder != domain.LedgerCustody() {
		t.Fatalf("mirrored holder = %s, want marketplace custody", rec.Holder)
	}
}

func TestUpdateRoyaltyFee_PersistsAndEmits(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	ev, err := f.svc.UpdateRoyaltyFee(ctx, deployer, centiEth(5))
	if err != nil {
		t.Fatalf("update fee: %v", err)
	}
	if ev.Kind != domain.EventFeeUpdated {
		t.Fatalf("kind = %q", ev.Kind)
	}
	// Not about any asset; must not be confused with events for asset 0.
	if ev.AssetID != nil {
		t.Fatalf("fee event asset id = %d, want none", *ev.AssetID)
	}

	stored, err := f.fees.Get(ctx)
	if err != nil {
		t.Fatalf("fee not persisted: %v", err)
	}
	if stored != centiEth(5).String() {
		t.Fatalf("persisted fee = %s, want %s", stored, centiEth(5))
	}

	if f.svc.Info(ctx).RoyaltyFee.Cmp(centiEth(5)) != 0 {
		t.Fatal("live fee not updated")
	}
}

func TestUpdateRoyaltyFee_RejectsNonAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if _, err := f.svc.UpdateRoyaltyFee(ctx, buyer1, centiEth(5)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if _, err := f.fees.Get(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("fee persisted after rejected update")
	}
}

func TestUnsold_CacheAside(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	// Miss populates the cache from the ledger.
	items := f.svc.Unsold(ctx)
	if len(items) != 2 {
		t.Fatalf("unsold = %d, want 2", len(items))
	}
	if !f.cache.primed {
		t.Fatal("cache not primed after miss")
	}

	// A primed cache is served as-is, even when stale.
	f.cache.items = f.cache.items[:1]
	if got := f.svc.Unsold(ctx); len(got) != 1 {
		t.Fatalf("cached unsold = %d, want 1", len(got))
	}

	// A purchase drops the cache; the next read refreshes it.
	if _, err := f.svc.Buy(ctx, 0, eth(1), buyer1); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if f.cache.primed {
		t.Fatal("cache still primed after purchase")
	}
	if got := f.svc.Unsold(ctx); len(got) != 1 {
		t.Fatalf("unsold after purchase = %d, want 1", len(got))
	}
}

func TestDepositAndBalance(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	fresh := common.HexToAddress("0x0000000000000000000000000000000000000333")
	if got := f.svc.Balance(ctx, fresh); got.Sign() != 0 {
		t.Fatalf("fresh balance = %s", got)
	}
	if err := f.svc.Deposit(ctx, fresh, eth(3)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := f.svc.Balance(ctx, fresh); got.Cmp(eth(3)) != 0 {
		t.Fatalf("balance = %s, want %s", got, eth(3))
	}

	if err := f.svc.Deposit(ctx, common.Address{}, eth(1)); err == nil {
		t.Fatal("deposit to zero address succeeded")
	}
}

func TestSeedMirror_ThenRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if err := f.svc.SeedMirror(ctx); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}

	recs, err := f.items.List(ctx)
	if err != nil || len(recs) != 2 {
		t.Fatalf("mirrored records = %d (%v)", len(recs), err)
	}
	storedFee, err := f.fees.Get(ctx)
	if err != nil {
		t.Fatalf("seeded fee: %v", err)
	}

	fee, ok := new(big.Int).SetString(storedFee, 10)
	if !ok {
		t.Fatalf("corrupt seeded fee %q", storedFee)
	}

	b := bank.New()
	restored, err := ledger.Restore(ledger.Params{
		Name:        "BoogieFi",
		Symbol:      "BooFi",
		BaseURI:     "ipfs://catalogue/",
		RoyaltyFee:  centiEth(1),
		Beneficiary: artist,
		Admin:       deployer,
		Deployer:    deployer,
		Prices:      []*big.Int{eth(1), eth(2)},
		Deposit:     centiEth(2),
	}, fee, recs, b)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ItemCount() != 2 {
		t.Fatalf("restored item count = %d", restored.ItemCount())
	}
	if restored.EscrowedTotal().Cmp(centiEth(2)) != 0 {
		t.Fatalf("restored escrow = %s", restored.EscrowedTotal())
	}
}

// gatedItemStore stalls the first Upsert until released, exposing any window
// where a later mutation could mirror its row ahead of an earlier one.
type gatedItemStore struct {
	*fakeItemStore
	entered chan struct{}
	release chan struct{}
	gated   atomic.Bool
}

func (s *gatedItemStore) Upsert(ctx context.Context, rec domain.ItemRecord) error {
	if s.gated.CompareAndSwap(false, true) {
		close(s.entered)
		<-s.release
	}
	return s.fakeItemStore.Upsert(ctx, rec)
}

func TestMirrorWrites_FollowCommitOrder(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	gated := &gatedItemStore{
		fakeItemStore: f.items,
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	f.svc.items = gated

	// The buy commits and then stalls inside its mirror write.
	buyDone := make(chan error, 1)
	go func() {
		_, err := f.svc.Buy(ctx, 0, eth(1), buyer1)
		buyDone <- err
	}()
	<-gated.entered

	// A resell of the same asset must not get its row in first.
	resellDone := make(chan error, 1)
	go func() {
		_, err := f.svc.Resell(ctx, 0, eth(4), centiEth(1), buyer1)
		resellDone <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if n, _ := f.items.Count(ctx); n != 0 {
		t.Fatal("resell mirrored ahead of the pending buy row")
	}

	close(gated.release)
	if err := <-buyDone; err != nil {
		t.Fatalf("buy: %v", err)
	}
	if err := <-resellDone; err != nil {
		t.Fatalf("resell: %v", err)
	}

	// The surviving row matches the ledger, so a restart restores the
	// relisted state, not the intermediate sold state.
	rec, err := f.items.GetByID(ctx, 0)
	if err != nil {
		t.Fatalf("mirror row missing: %v", err)
	}
	live, err := f.svc.Item(ctx, 0)
	if err != nil {
		t.Fatalf("ledger record: %v", err)
	}
	if rec.Item.Sold != live.Item.Sold || rec.Item.Seller != live.Item.Seller {
		t.Fatalf("mirror diverged: mirror %+v, ledger %+v", rec.Item, live.Item)
	}
	if rec.Item.Sold {
		t.Fatal("mirror kept the stale sold state")
	}
	if rec.Item.Price.Cmp(eth(4)) != 0 {
		t.Fatalf("mirrored price = %s, want %s", rec.Item.Price, eth(4))
	}
	if rec.Escrow == nil || rec.Escrow.Cmp(centiEth(1)) != 0 {
		t.Fatalf("mirrored escrow = %s, want %s", rec.Escrow, centiEth(1))
	}
	if !rec.Holder.IsLedger() {
		t.Fatalf("mirrored holder = %s, want marketplace custody", rec.Holder)
	}
}

func TestRecentEvents_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if _, err := f.svc.Buy(ctx, 0, eth(1), buyer1); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := f.svc.Buy(ctx, 1, eth(2), buyer2); err != nil {
		t.Fatalf("buy: %v", err)
	}

	evs, err := f.svc.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("events = %d, want 2", len(evs))
	}
	if *evs[0].AssetID != 1 || *evs[1].AssetID != 0 {
		t.Fatalf("order = [%d %d], want newest first", *evs[0].AssetID, *evs[1].AssetID)
	}
}
