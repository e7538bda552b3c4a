// Package access gates the ledger's administrative operation to a single
// privileged identity. Authorization is a pure function of (caller, admin):
// the caller identity is passed explicitly into every state-mutating
// operation, never read from ambient state.
package access

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/boogiefi/marketd/internal/domain"
)

// Guard holds the fixed admin identity set at ledger creation.
type Guard struct {
	admin common.Address
}

// NewGuard creates a Guard for the given admin account.
func NewGuard(admin common.Address) *Guard {
	return &Guard{admin: admin}
}

// RequireAdmin fails with domain.ErrUnauthorized unless caller is the admin.
func (g *Guard) RequireAdmin(caller common.Address) error {
	if caller != g.admin {
		return fmt.Errorf("access: caller %s is not the admin: %w",
			caller.Hex(), domain.ErrUnauthorized)
	}
	return nil
}

// Admin returns the privileged identity.
func (g *Guard) Admin() common.Address {
	return g.admin
}
