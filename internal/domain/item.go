package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MarketItem is the sale-state record paired 1:1 with an asset. It is created
// together with its asset at genesis and only ever mutated, never removed.
//
// Invariants: Sold == true exactly when Seller is the zero address, and
// Price > 0 whenever Sold == false.
type MarketItem struct {
	AssetID uint64         `json:"asset_id"`
	Seller  common.Address `json:"seller"`
	Price   *big.Int       `json:"price"`
	Sold    bool           `json:"sold"`
}

// Clone returns a deep copy so callers cannot mutate ledger-held state
// through a returned item.
func (m MarketItem) Clone() MarketItem {
	cp := m
	if m.Price != nil {
		cp.Price = new(big.Int).Set(m.Price)
	}
	return cp
}

// ItemRecord is the persistence row mirroring one listing: the market item,
// the current holder of its asset, and the royalty amount still escrowed for
// the listing (nil or zero once released).
type ItemRecord struct {
	Item   MarketItem `json:"item"`
	Holder Custody    `json:"holder"`
	Escrow *big.Int   `json:"escrow"`
}
