// Package bank models the execution environment's ability to move payment
// value between accounts atomically as part of a ledger call. Balances are
// exact integers (wei) keyed by custody identity; the ledger's own custody
// account holds escrowed royalties.
//
// The bank carries no locking of its own: the ledger's host (the service
// layer) serializes every mutating call, so a transfer is always part of one
// indivisible unit of work.
package bank

import (
	"fmt"
	"math/big"

	"github.com/boogiefi/marketd/internal/domain"
)

// Bank tracks account balances for the ledger's value flows.
type Bank struct {
	balances map[string]*big.Int
}

// New returns an empty bank.
func New() *Bank {
	return &Bank{balances: make(map[string]*big.Int)}
}

// Deposit credits an account from outside the ledger (the host injecting
// value, e.g. a funded wallet). Amount must be positive.
func (b *Bank) Deposit(to domain.Custody, amount *big.Int) error {
	if to.IsZero() {
		return fmt.Errorf("bank: deposit to unset custody")
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("bank: deposit amount must be positive")
	}
	b.credit(to, amount)
	return nil
}

// Transfer moves amount from one account to another. It either fully
// succeeds or leaves both balances untouched; an uncovered debit fails with
// domain.ErrInsufficientFunds. A zero amount is a no-op.
func (b *Bank) Transfer(from, to domain.Custody, amount *big.Int) error {
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("bank: transfer with unset custody")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("bank: transfer amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return nil
	}
	cur := b.balance(from)
	if cur.Cmp(amount) < 0 {
		return fmt.Errorf("bank: %s has %s, needs %s: %w",
			from, cur, amount, domain.ErrInsufficientFunds)
	}
	b.balances[from.String()] = cur.Sub(cur, amount)
	b.credit(to, amount)
	return nil
}

// CanCover reports whether the account's balance covers amount. The ledger
// uses this to validate every precondition before mutating any state.
func (b *Bank) CanCover(acct domain.Custody, amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return true
	}
	return b.balance(acct).Cmp(amount) >= 0
}

// Balance returns a copy of the account's current balance.
func (b *Bank) Balance(acct domain.Custody) *big.Int {
	return new(big.Int).Set(b.balance(acct))
}

func (b *Bank) balance(acct domain.Custody) *big.Int {
	if bal, ok := b.balances[acct.String()]; ok {
		return bal
	}
	return new(big.Int)
}

func (b *Bank) credit(to domain.Custody, amount *big.Int) {
	key := to.String()
	if bal, ok := b.balances[key]; ok {
		bal.Add(bal, amount)
		return
	}
	b.balances[key] = new(big.Int).Set(amount)
}
