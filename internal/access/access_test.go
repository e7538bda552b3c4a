package access

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/boogiefi/marketd/internal/domain"
)

func TestRequireAdmin(t *testing.T) {
	admin := common.HexToAddress("0x00000000000000000000000000000000000000ad")
	other := common.HexToAddress("0x0000000000000000000000000000000000000001")

	g := NewGuard(admin)

	if err := g.RequireAdmin(admin); err != nil {
		t.Fatalf("admin rejected: %v", err)
	}
	if err := g.RequireAdmin(other); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := g.RequireAdmin(common.Address{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("zero address accepted: %v", err)
	}
}
