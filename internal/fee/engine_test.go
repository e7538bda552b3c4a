package fee

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/boogiefi/marketd/internal/bank"
	"github.com/boogiefi/marketd/internal/domain"
)

var artist = domain.AccountCustody(common.HexToAddress("0x0000000000000000000000000000000000000aa7"))

func newEngine(t *testing.T, rate int64, ledgerFunds int64) (*Engine, *bank.Bank) {
	t.Helper()
	b := bank.New()
	if ledgerFunds > 0 {
		if err := b.Deposit(domain.LedgerCustody(), big.NewInt(ledgerFunds)); err != nil {
			t.Fatalf("fund ledger: %v", err)
		}
	}
	e, err := New(big.NewInt(rate), artist, b)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, b
}

func TestEscrowAndRelease_PaysBeneficiary(t *testing.T) {
	e, b := newEngine(t, 10, 10)

	if err := e.Escrow(0, big.NewInt(10)); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if total := e.EscrowedTotal(); total.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("escrowed total = %s, want 10", total)
	}

	released, err := e.Release(0)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("released = %s, want 10", released)
	}
	if got := b.Balance(artist); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("beneficiary balance = %s, want 10", got)
	}
	if got := b.Balance(domain.LedgerCustody()); got.Sign() != 0 {
		t.Fatalf("ledger balance = %s, want 0", got)
	}
	if _, ok := e.Escrowed(0); ok {
		t.Fatal("liability not cleared after release")
	}
}

func TestRelease_WithoutEscrowIsNoEscrow(t *testing.T) {
	e, _ := newEngine(t, 10, 0)
	if _, err := e.Release(7); !errors.Is(err, domain.ErrNoEscrow) {
		t.Fatalf("expected ErrNoEscrow, got %v", err)
	}
}

func TestSetRate_DoesNotTouchExistingEscrow(t *testing.T) {
	e, _ := newEngine(t, 10, 10)
	if err := e.Escrow(0, e.CurrentRate()); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if err := e.SetRate(big.NewInt(25)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if got := e.CurrentRate(); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("rate = %s, want 25", got)
	}
	amount, ok := e.Escrowed(0)
	if !ok || amount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("existing escrow changed: %v %v", amount, ok)
	}
}

func TestEscrow_AmountFixedAtDepositTime(t *testing.T) {
	e, _ := newEngine(t, 10, 0)
	rate := e.CurrentRate()
	if err := e.Escrow(3, rate); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	rate.SetInt64(999)
	amount, _ := e.Escrowed(3)
	if amount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("escrow aliased caller's big.Int: %s", amount)
	}
}
