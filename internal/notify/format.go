package notify

import (
	"fmt"
	"math/big"

	"github.com/boogiefi/marketd/internal/domain"
)

var weiPerEther = new(big.Float).SetFloat64(1e18)

// FormatEvent renders a ledger event into a notification title and message.
// Amounts are shown in ether for readability.
func FormatEvent(ev domain.LedgerEvent) (title, message string) {
	switch ev.Kind {
	case domain.EventItemBought:
		title = fmt.Sprintf("Item #%s sold", formatAssetID(ev.AssetID))
		message = fmt.Sprintf("Buyer %s paid %s ETH to seller %s.",
			ev.Buyer.Hex(), formatEther(ev.Price), ev.Seller.Hex())
	case domain.EventItemRelisted:
		title = fmt.Sprintf("Item #%s relisted", formatAssetID(ev.AssetID))
		message = fmt.Sprintf("Seller %s listed the item for %s ETH.",
			ev.Seller.Hex(), formatEther(ev.Price))
	case domain.EventFeeUpdated:
		title = "Royalty fee updated"
		message = fmt.Sprintf("New per-listing royalty fee: %s ETH.", formatEther(ev.Price))
	default:
		title = string(ev.Kind)
		message = fmt.Sprintf("Asset #%s.", formatAssetID(ev.AssetID))
	}
	return title, message
}

// formatAssetID renders an optional asset id; nil means the event is not
// about a specific asset.
func formatAssetID(id *uint64) string {
	if id == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *id)
}

// formatEther converts a wei amount to a decimal ether string.
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	eth := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther)
	return eth.Text('f', -1)
}
