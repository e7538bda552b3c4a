// Package fee computes and escrows the royalty obligation attached to every
// listing event. Escrowed amounts are fixed per listing at deposit time, so a
// later royalty-rate change never retroactively alters an existing listing.
package fee

import (
	"fmt"
	"math/big"

	"github.com/boogiefi/marketd/internal/bank"
	"github.com/boogiefi/marketd/internal/domain"
)

// Engine tracks the outstanding royalty liability per listing and pays
// released escrow to the fixed beneficiary through the bank.
type Engine struct {
	rate        *big.Int
	beneficiary domain.Custody
	bank        *bank.Bank
	escrows     map[uint64]*big.Int
}

// New creates an Engine with the given initial royalty rate and beneficiary.
func New(rate *big.Int, beneficiary domain.Custody, b *bank.Bank) (*Engine, error) {
	if rate == nil || rate.Sign() < 0 {
		return nil, fmt.Errorf("fee: royalty rate must be non-negative")
	}
	if beneficiary.IsZero() {
		return nil, fmt.Errorf("fee: beneficiary is unset")
	}
	return &Engine{
		rate:        new(big.Int).Set(rate),
		beneficiary: beneficiary,
		bank:        b,
		escrows:     make(map[uint64]*big.Int),
	}, nil
}

// Escrow records amount as the outstanding royalty liability for the
// listing. The funds themselves must already sit in ledger custody; the
// engine only does the bookkeeping.
func (e *Engine) Escrow(id uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("fee: escrow amount must be non-negative")
	}
	e.escrows[id] = new(big.Int).Set(amount)
	return nil
}

// Release pays the escrowed amount for the listing to the beneficiary and
// clears the liability. A release without a matching escrow fails with
// domain.ErrNoEscrow; that indicates a ledger bug, not a user error.
func (e *Engine) Release(id uint64) (*big.Int, error) {
	amount, ok := e.escrows[id]
	if !ok {
		return nil, fmt.Errorf("fee: release listing %d: %w", id, domain.ErrNoEscrow)
	}
	if err := e.bank.Transfer(domain.LedgerCustody(), e.beneficiary, amount); err != nil {
		return nil, fmt.Errorf("fee: release listing %d: %w", id, err)
	}
	delete(e.escrows, id)
	return new(big.Int).Set(amount), nil
}

// Escrowed returns the outstanding liability for the listing, if any.
func (e *Engine) Escrowed(id uint64) (*big.Int, bool) {
	amount, ok := e.escrows[id]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(amount), true
}

// EscrowedTotal returns the sum of all outstanding liabilities. It equals
// the bank balance of ledger custody whenever the ledger's invariants hold.
func (e *Engine) EscrowedTotal() *big.Int {
	total := new(big.Int)
	for _, amount := range e.escrows {
		total.Add(total, amount)
	}
	return total
}

// CurrentRate returns the royalty fee applied to new listings.
func (e *Engine) CurrentRate() *big.Int {
	return new(big.Int).Set(e.rate)
}

// SetRate updates the royalty fee for listings created after the change.
// Authorization is the caller's responsibility (see the access package).
func (e *Engine) SetRate(rate *big.Int) error {
	if rate == nil || rate.Sign() < 0 {
		return fmt.Errorf("fee: royalty rate must be non-negative")
	}
	e.rate.Set(rate)
	return nil
}

// Beneficiary returns the fixed royalty recipient.
func (e *Engine) Beneficiary() domain.Custody {
	return e.beneficiary
}
