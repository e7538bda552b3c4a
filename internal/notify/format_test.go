package notify

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/boogiefi/marketd/internal/domain"
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func assetID(n uint64) *uint64 {
	return &n
}

func TestFormatEvent_ItemBought(t *testing.T) {
	seller := common.HexToAddress("0x00000000000000000000000000000000000000d1")
	buyer := common.HexToAddress("0x0000000000000000000000000000000000000111")

	title, message := FormatEvent(domain.LedgerEvent{
		Kind:    domain.EventItemBought,
		AssetID: assetID(3),
		Seller:  seller,
		Buyer:   buyer,
		Price:   eth(2),
	})

	if title != "Item #3 sold" {
		t.Fatalf("title = %q", title)
	}
	for _, want := range []string{buyer.Hex(), seller.Hex(), "2 ETH"} {
		if !strings.Contains(message, want) {
			t.Fatalf("message %q missing %q", message, want)
		}
	}
}

func TestFormatEvent_FeeUpdated(t *testing.T) {
	title, message := FormatEvent(domain.LedgerEvent{
		Kind: domain.EventFeeUpdated,
		// 0.01 ether
		Price: big.NewInt(1e16),
	})

	if title != "Royalty fee updated" {
		t.Fatalf("title = %q", title)
	}
	if !strings.Contains(message, "0.01 ETH") {
		t.Fatalf("message = %q", message)
	}
}

func TestFormatEther(t *testing.T) {
	cases := []struct {
		wei  *big.Int
		want string
	}{
		{nil, "0"},
		{big.NewInt(0), "0"},
		{eth(1), "1"},
		{big.NewInt(5e17), "0.5"},
	}
	for _, tc := range cases {
		if got := formatEther(tc.wei); got != tc.want {
			t.Fatalf("formatEther(%s) = %q, want %q", tc.wei, got, tc.want)
		}
	}
}

// recordingSender captures deliveries for assertions.
type recordingSender struct {
	titles []string
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return "recording" }

func TestNotifier_FiltersByEventKind(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := &recordingSender{}
	n := NewNotifier([]Sender{rec}, []string{"item_bought"}, logger)

	ctx := t.Context()
	if err := n.Notify(ctx, "item_bought", "sold", "body"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := n.Notify(ctx, "fee_updated", "fee", "body"); err != nil {
		t.Fatalf("notify filtered: %v", err)
	}

	if len(rec.titles) != 1 || rec.titles[0] != "sold" {
		t.Fatalf("delivered = %v, want only the allowed kind", rec.titles)
	}
}
