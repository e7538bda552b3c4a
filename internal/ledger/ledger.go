// Package ledger implements the marketplace's state-transition core: the
// genesis mint-and-list batch, purchases, relistings, the royalty-fee update,
// and the read surface over listings.
//
// Every mutating operation validates all of its preconditions before touching
// any state, so a failure is always a whole-call rejection with nothing
// partially applied. The package carries no locking: the host (the service
// layer) guarantees each call runs serially and in isolation.
package ledger

import (
	"fmt"
	"iter"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/boogiefi/marketd/internal/access"
	"github.com/boogiefi/marketd/internal/bank"
	"github.com/boogiefi/marketd/internal/domain"
	"github.com/boogiefi/marketd/internal/fee"
	"github.com/boogiefi/marketd/internal/registry"
)

// Params fixes the ledger's identity and genesis catalogue. Beneficiary and
// Admin never change after creation; RoyaltyFee is the initial rate.
type Params struct {
	Name       string
	Symbol     string
	BaseURI    string
	RoyaltyFee *big.Int
	// Beneficiary receives the escrowed royalty on every completed sale.
	Beneficiary common.Address
	// Admin is the only identity allowed to change the royalty fee.
	Admin common.Address
	// Deployer is the nominal seller of every genesis listing and receives
	// the sale price when a genesis item is first bought.
	Deployer common.Address
	// Prices lists the genesis catalogue: one asset per entry, listed at
	// that price.
	Prices []*big.Int
	// Deposit is the value attached to initialization. It must equal
	// RoyaltyFee * len(Prices), covering escrow for all initial listings.
	Deposit *big.Int
}

// Ledger is the marketplace core. Assets listed for sale sit in the ledger's
// own custody; the bank balance of that custody always equals the sum of
// escrowed royalties for active listings.
type Ledger struct {
	name     string
	symbol   string
	baseURI  string
	deployer common.Address

	items    []*domain.MarketItem
	registry *registry.Registry
	fees     *fee.Engine
	guard    *access.Guard
	bank     *bank.Bank
}

func (p Params) validate() error {
	if p.Name == "" || p.Symbol == "" {
		return fmt.Errorf("ledger: name and symbol are required")
	}
	if p.RoyaltyFee == nil || p.RoyaltyFee.Sign() < 0 {
		return fmt.Errorf("ledger: royalty fee must be non-negative")
	}
	if p.Beneficiary == (common.Address{}) {
		return fmt.Errorf("ledger: beneficiary is unset")
	}
	if p.Admin == (common.Address{}) {
		return fmt.Errorf("ledger: admin is unset")
	}
	if p.Deployer == (common.Address{}) {
		return fmt.Errorf("ledger: deployer is unset")
	}
	return nil
}

// New initializes the ledger: it checks the attached deposit against the
// total royalty obligation, moves the deposit from the deployer into ledger
// custody, mints one asset per price into ledger custody, and lists each at
// its price with the deployer as seller.
func New(p Params, b *bank.Bank) (*Ledger, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(p.Prices) == 0 {
		return nil, fmt.Errorf("ledger: genesis price list is empty")
	}
	for i, price := range p.Prices {
		if price == nil || price.Sign() <= 0 {
			return nil, fmt.Errorf("ledger: genesis price %d: %w", i, domain.ErrInvalidPrice)
		}
	}

	required := new(big.Int).Mul(p.RoyaltyFee, big.NewInt(int64(len(p.Prices))))
	if p.Deposit == nil || p.Deposit.Cmp(required) != 0 {
		return nil, fmt.Errorf("ledger: deposit must equal royalty fee x %d listings: %w",
			len(p.Prices), domain.ErrWrongPayment)
	}

	fees, err := fee.New(p.RoyaltyFee, domain.AccountCustody(p.Beneficiary), b)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		name:     p.Name,
		symbol:   p.Symbol,
		baseURI:  p.BaseURI,
		deployer: p.Deployer,
		registry: registry.New(),
		fees:     fees,
		guard:    access.NewGuard(p.Admin),
		bank:     b,
	}

	if err := b.Transfer(domain.AccountCustody(p.Deployer), domain.LedgerCustody(), p.Deposit); err != nil {
		return nil, fmt.Errorf("ledger: genesis deposit: %w", err)
	}

	ids, err := l.registry.Mint(len(p.Prices), p.BaseURI, domain.LedgerCustody())
	if err != nil {
		return nil, err
	}

	l.items = make([]*domain.MarketItem, len(ids))
	for i, id := range ids {
		l.items[i] = &domain.MarketItem{
			AssetID: id,
			Seller:  p.Deployer,
			Price:   new(big.Int).Set(p.Prices[i]),
			Sold:    false,
		}
		if err := l.fees.Escrow(id, p.RoyaltyFee); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Restore rebuilds a ledger from mirrored item records, e.g. after a process
// restart. currentFee is the persisted royalty rate (which may differ from
// the genesis rate in Params). The bank is seeded so that ledger custody
// holds exactly the outstanding escrow total.
func Restore(p Params, currentFee *big.Int, recs []domain.ItemRecord, b *bank.Bank) (*Ledger, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("ledger: restore with no item records")
	}
	if currentFee == nil {
		currentFee = p.RoyaltyFee
	}

	fees, err := fee.New(currentFee, domain.AccountCustody(p.Beneficiary), b)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		name:     p.Name,
		symbol:   p.Symbol,
		baseURI:  p.BaseURI,
		deployer: p.Deployer,
		registry: registry.New(),
		fees:     fees,
		guard:    access.NewGuard(p.Admin),
		bank:     b,
	}

	holders := make([]domain.Custody, len(recs))
	l.items = make([]*domain.MarketItem, len(recs))
	escrowTotal := new(big.Int)
	for i, rec := range recs {
		if rec.Item.AssetID != uint64(i) {
			return nil, fmt.Errorf("ledger: restore expects dense ids, got %d at %d", rec.Item.AssetID, i)
		}
		holders[i] = rec.Holder
		item := rec.Item.Clone()
		l.items[i] = &item
		if !rec.Item.Sold {
			if rec.Escrow == nil || rec.Escrow.Sign() < 0 {
				return nil, fmt.Errorf("ledger: restore listing %d unsold without escrow: %w",
					rec.Item.AssetID, domain.ErrNoEscrow)
			}
			if err := l.fees.Escrow(rec.Item.AssetID, rec.Escrow); err != nil {
				return nil, err
			}
			escrowTotal.Add(escrowTotal, rec.Escrow)
		}
	}

	if err := l.registry.Restore(p.BaseURI, holders); err != nil {
		return nil, err
	}
	if escrowTotal.Sign() > 0 {
		if err := b.Deposit(domain.LedgerCustody(), escrowTotal); err != nil {
			return nil, fmt.Errorf("ledger: restore escrow balance: %w", err)
		}
	}

	return l, nil
}

// Buy completes a listing: the buyer pays exactly the asking price to the
// seller, the escrowed royalty is released to the beneficiary, and custody
// moves from the ledger to the buyer. The item is then marked sold with no
// seller. Any precondition failure leaves all state unchanged.
func (l *Ledger) Buy(id uint64, payment *big.Int, buyer common.Address) (domain.MarketItemBought, error) {
	var rec domain.MarketItemBought

	item, err := l.item(id)
	if err != nil {
		return rec, err
	}
	if item.Sold {
		return rec, fmt.Errorf("ledger: buy %d: %w", id, domain.ErrAlreadySold)
	}
	if payment == nil || payment.Cmp(item.Price) != 0 {
		return rec, fmt.Errorf("ledger: buy %d needs exactly %s: %w",
			id, item.Price, domain.ErrWrongPayment)
	}
	if buyer == (common.Address{}) {
		return rec, fmt.Errorf("ledger: buy %d: buyer is unset", id)
	}
	if _, ok := l.fees.Escrowed(id); !ok {
		return rec, fmt.Errorf("ledger: buy %d: %w", id, domain.ErrNoEscrow)
	}
	buyerAcct := domain.AccountCustody(buyer)
	if !l.bank.CanCover(buyerAcct, payment) {
		return rec, fmt.Errorf("ledger: buy %d: %w", id, domain.ErrInsufficientFunds)
	}

	// Preconditions hold; apply the transition as one unit.
	if err := l.bank.Transfer(buyerAcct, domain.AccountCustody(item.Seller), payment); err != nil {
		return rec, fmt.Errorf("ledger: buy %d pay seller: %w", id, err)
	}
	if _, err := l.fees.Release(id); err != nil {
		return rec, fmt.Errorf("ledger: buy %d: %w", id, err)
	}
	if err := l.registry.Transfer(id, domain.LedgerCustody(), buyerAcct); err != nil {
		return rec, fmt.Errorf("ledger: buy %d: %w", id, err)
	}

	rec = domain.MarketItemBought{
		AssetID: id,
		Seller:  item.Seller,
		Buyer:   buyer,
		Price:   new(big.Int).Set(item.Price),
	}
	item.Seller = common.Address{}
	item.Sold = true
	return rec, nil
}

// Resell puts a bought asset back up for sale: custody returns to the
// ledger, the attached royalty payment is escrowed against the listing, and
// the item reopens at the new price with the relister as seller.
func (l *Ledger) Resell(id uint64, newPrice, royalty *big.Int, relister common.Address) (domain.MarketItemRelisted, error) {
	var rec domain.MarketItemRelisted

	item, err := l.item(id)
	if err != nil {
		return rec, err
	}
	holder, err := l.registry.OwnerOf(id)
	if err != nil {
		return rec, err
	}
	if !holder.Is(relister) {
		return rec, fmt.Errorf("ledger: resell %d by %s: %w",
			id, relister.Hex(), domain.ErrNotHolder)
	}
	if newPrice == nil || newPrice.Sign() <= 0 {
		return rec, fmt.Errorf("ledger: resell %d: %w", id, domain.ErrInvalidPrice)
	}
	rate := l.fees.CurrentRate()
	if royalty == nil || royalty.Cmp(rate) != 0 {
		return rec, fmt.Errorf("ledger: resell %d needs royalty of exactly %s: %w",
			id, rate, domain.ErrRoyaltyNotPaid)
	}
	relisterAcct := domain.AccountCustody(relister)
	if !l.bank.CanCover(relisterAcct, royalty) {
		return rec, fmt.Errorf("ledger: resell %d: %w", id, domain.ErrInsufficientFunds)
	}

	if err := l.registry.Transfer(id, relisterAcct, domain.LedgerCustody()); err != nil {
		return rec, fmt.Errorf("ledger: resell %d: %w", id, err)
	}
	if err := l.bank.Transfer(relisterAcct, domain.LedgerCustody(), royalty); err != nil {
		return rec, fmt.Errorf("ledger: resell %d escrow deposit: %w", id, err)
	}
	if err := l.fees.Escrow(id, royalty); err != nil {
		return rec, fmt.Errorf("ledger: resell %d: %w", id, err)
	}

	item.Seller = relister
	item.Price = new(big.Int).Set(newPrice)
	item.Sold = false

	return domain.MarketItemRelisted{
		AssetID: id,
		Seller:  relister,
		Price:   new(big.Int).Set(newPrice),
	}, nil
}

// UpdateRoyaltyFee changes the royalty rate for listings created after the
// change. Only the admin may call it; already-escrowed listings keep the
// amount deposited at their listing time.
func (l *Ledger) UpdateRoyaltyFee(caller common.Address, newFee *big.Int) error {
	if err := l.guard.RequireAdmin(caller); err != nil {
		return err
	}
	if newFee == nil || newFee.Sign() < 0 {
		return fmt.Errorf("ledger: royalty fee must be non-negative")
	}
	return l.fees.SetRate(newFee)
}

// Item returns a copy of the market item for the asset id.
func (l *Ledger) Item(id uint64) (domain.MarketItem, error) {
	item, err := l.item(id)
	if err != nil {
		return domain.MarketItem{}, err
	}
	return item.Clone(), nil
}

// ItemCount returns the size of the catalogue.
func (l *Ledger) ItemCount() int {
	return len(l.items)
}

// Unsold yields all items still up for sale in ascending id order. The
// sequence is lazy and restartable.
func (l *Ledger) Unsold() iter.Seq[domain.MarketItem] {
	return func(yield func(domain.MarketItem) bool) {
		for _, item := range l.items {
			if item.Sold {
				continue
			}
			if !yield(item.Clone()) {
				return
			}
		}
	}
}

// TokensOf yields the items the account can call its own, in ascending id
// order: items whose asset it currently holds, plus items it has actively
// listed for sale (the asset then sits in ledger custody).
func (l *Ledger) TokensOf(acct common.Address) iter.Seq[domain.MarketItem] {
	return func(yield func(domain.MarketItem) bool) {
		for _, item := range l.items {
			holder, err := l.registry.OwnerOf(item.AssetID)
			if err != nil {
				continue
			}
			owns := holder.Is(acct)
			selling := !item.Sold && item.Seller == acct
			if !owns && !selling {
				continue
			}
			if !yield(item.Clone()) {
				return
			}
		}
	}
}

// OwnerOf returns the current custody of the asset.
func (l *Ledger) OwnerOf(id uint64) (domain.Custody, error) {
	return l.registry.OwnerOf(id)
}

// MetadataURI returns the asset's metadata location.
func (l *Ledger) MetadataURI(id uint64) (string, error) {
	return l.registry.MetadataURI(id)
}

// BalanceOf returns the number of assets held by the given custody.
func (l *Ledger) BalanceOf(holder domain.Custody) int {
	return l.registry.BalanceOf(holder)
}

// HeldBalance returns the currency currently held by the ledger itself. It
// equals the outstanding escrow total whenever the invariants hold.
func (l *Ledger) HeldBalance() *big.Int {
	return l.bank.Balance(domain.LedgerCustody())
}

// EscrowedTotal returns the sum of royalties escrowed for active listings.
func (l *Ledger) EscrowedTotal() *big.Int {
	return l.fees.EscrowedTotal()
}

// Record returns the persistence row for one listing.
func (l *Ledger) Record(id uint64) (domain.ItemRecord, error) {
	item, err := l.item(id)
	if err != nil {
		return domain.ItemRecord{}, err
	}
	holder, err := l.registry.OwnerOf(id)
	if err != nil {
		return domain.ItemRecord{}, err
	}
	rec := domain.ItemRecord{Item: item.Clone(), Holder: holder}
	if escrow, ok := l.fees.Escrowed(id); ok {
		rec.Escrow = escrow
	}
	return rec, nil
}

// Records returns persistence rows for the whole catalogue.
func (l *Ledger) Records() []domain.ItemRecord {
	recs := make([]domain.ItemRecord, 0, len(l.items))
	for _, item := range l.items {
		rec, err := l.Record(item.AssetID)
		if err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

// Name returns the catalogue name.
func (l *Ledger) Name() string { return l.name }

// Symbol returns the catalogue symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// BaseURI returns the shared metadata base path.
func (l *Ledger) BaseURI() string { return l.baseURI }

// RoyaltyFee returns the rate applied to new listings.
func (l *Ledger) RoyaltyFee() *big.Int { return l.fees.CurrentRate() }

// Deployer returns the genesis seller identity.
func (l *Ledger) Deployer() common.Address { return l.deployer }

func (l *Ledger) item(id uint64) (*domain.MarketItem, error) {
	if id >= uint64(len(l.items)) {
		return nil, fmt.Errorf("ledger: item %d: %w", id, domain.ErrUnknownAsset)
	}
	return l.items[id], nil
}
