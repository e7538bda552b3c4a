// Package domain defines the core types of the marketplace ledger: assets,
// custody, market items, ledger events, and the store/cache interfaces that
// the infrastructure packages implement.
package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is a uniquely identified digital item. IDs are assigned sequentially
// starting at 0 at mint time and are never reused or destroyed. The metadata
// URI is fixed at mint time.
type Asset struct {
	ID          uint64  `json:"id"`
	Holder      Custody `json:"holder"`
	MetadataURI string  `json:"metadata_uri"`
}

// Custody is a tagged holder identity: either the ledger's own custody
// account (assets escrowed while listed for sale) or an external account.
// The zero value is not a valid custody; use LedgerCustody or AccountCustody.
type Custody struct {
	kind    custodyKind
	account common.Address
}

type custodyKind uint8

const (
	custodyNone custodyKind = iota
	custodyLedger
	custodyAccount
)

// LedgerCustody returns the custody tag for the ledger's own escrow account.
func LedgerCustody() Custody {
	return Custody{kind: custodyLedger}
}

// AccountCustody returns the custody tag for an external account.
func AccountCustody(addr common.Address) Custody {
	return Custody{kind: custodyAccount, account: addr}
}

// IsLedger reports whether the asset is held by the ledger itself.
func (c Custody) IsLedger() bool {
	return c.kind == custodyLedger
}

// IsZero reports whether the custody tag is unset.
func (c Custody) IsZero() bool {
	return c.kind == custodyNone
}

// Account returns the external account and true when the custody tag refers
// to one, or the zero address and false for ledger custody.
func (c Custody) Account() (common.Address, bool) {
	if c.kind != custodyAccount {
		return common.Address{}, false
	}
	return c.account, true
}

// Is reports whether the custody tag refers to the given external account.
func (c Custody) Is(addr common.Address) bool {
	return c.kind == custodyAccount && c.account == addr
}

// String renders the custody as "marketplace" or the account's hex address.
func (c Custody) String() string {
	switch c.kind {
	case custodyLedger:
		return "marketplace"
	case custodyAccount:
		return c.account.Hex()
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler so Custody serializes as its
// String form in JSON payloads and logs.
func (c Custody) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses the String form back into a custody tag.
func (c *Custody) UnmarshalText(text []byte) error {
	s := string(text)
	switch {
	case s == "marketplace":
		*c = LedgerCustody()
		return nil
	case common.IsHexAddress(s):
		*c = AccountCustody(common.HexToAddress(s))
		return nil
	default:
		return fmt.Errorf("domain: invalid custody %q", s)
	}
}
