package bank

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/boogiefi/marketd/internal/domain"
)

var (
	alice = domain.AccountCustody(common.HexToAddress("0x0000000000000000000000000000000000000a11"))
	bob   = domain.AccountCustody(common.HexToAddress("0x0000000000000000000000000000000000000b0b"))
)

func wei(n int64) *big.Int { return big.NewInt(n) }

func TestTransfer_MovesExactAmount(t *testing.T) {
	b := New()
	if err := b.Deposit(alice, wei(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := b.Transfer(alice, bob, wei(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := b.Balance(alice); got.Cmp(wei(60)) != 0 {
		t.Fatalf("alice balance = %s, want 60", got)
	}
	if got := b.Balance(bob); got.Cmp(wei(40)) != 0 {
		t.Fatalf("bob balance = %s, want 40", got)
	}
}

func TestTransfer_InsufficientFundsLeavesBalancesUntouched(t *testing.T) {
	b := New()
	if err := b.Deposit(alice, wei(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	err := b.Transfer(alice, bob, wei(11))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := b.Balance(alice); got.Cmp(wei(10)) != 0 {
		t.Fatalf("alice balance changed: %s", got)
	}
	if got := b.Balance(bob); got.Sign() != 0 {
		t.Fatalf("bob balance changed: %s", got)
	}
}

func TestTransfer_LedgerCustodyIsAnAccount(t *testing.T) {
	b := New()
	if err := b.Deposit(alice, wei(5)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := b.Transfer(alice, domain.LedgerCustody(), wei(5)); err != nil {
		t.Fatalf("transfer to ledger: %v", err)
	}
	if got := b.Balance(domain.LedgerCustody()); got.Cmp(wei(5)) != 0 {
		t.Fatalf("ledger balance = %s, want 5", got)
	}
}

func TestBalance_ReturnsCopy(t *testing.T) {
	b := New()
	if err := b.Deposit(alice, wei(7)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	b.Balance(alice).SetInt64(999)
	if got := b.Balance(alice); got.Cmp(wei(7)) != 0 {
		t.Fatalf("internal balance mutated through copy: %s", got)
	}
}

func TestCanCover(t *testing.T) {
	b := New()
	if err := b.Deposit(alice, wei(3)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !b.CanCover(alice, wei(3)) {
		t.Fatal("expected alice to cover 3")
	}
	if b.CanCover(alice, wei(4)) {
		t.Fatal("alice should not cover 4")
	}
	if !b.CanCover(bob, nil) {
		t.Fatal("nil amount is always covered")
	}
}
