package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind discriminates ledger event records.
type EventKind string

const (
	EventItemBought   EventKind = "item_bought"
	EventItemRelisted EventKind = "item_relisted"
	EventFeeUpdated   EventKind = "fee_updated"
)

// MarketItemBought is the purchase record emitted when a listing completes:
// the seller was paid the price, the escrowed royalty went to the
// beneficiary, and custody moved to the buyer.
type MarketItemBought struct {
	AssetID uint64         `json:"asset_id"`
	Seller  common.Address `json:"seller"`
	Buyer   common.Address `json:"buyer"`
	Price   *big.Int       `json:"price"`
}

// MarketItemRelisted is the record emitted when a holder puts a previously
// bought asset back up for sale.
type MarketItemRelisted struct {
	AssetID uint64         `json:"asset_id"`
	Seller  common.Address `json:"seller"`
	Price   *big.Int       `json:"price"`
}

// LedgerEvent is the envelope persisted to the event log and broadcast to
// external observers. Seller/Buyer are zero addresses when not applicable to
// the event kind; AssetID is nil for events that are not about a specific
// asset (fee updates), so asset 0 stays distinguishable in the log.
type LedgerEvent struct {
	ID      string         `json:"id"`
	Kind    EventKind      `json:"kind"`
	AssetID *uint64        `json:"asset_id,omitempty"`
	Seller  common.Address `json:"seller"`
	Buyer   common.Address `json:"buyer"`
	Price   *big.Int       `json:"price"`
	At      time.Time      `json:"at"`
}
