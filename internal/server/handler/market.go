package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/boogiefi/marketd/internal/domain"
	"github.com/boogiefi/marketd/internal/service"
)

// MarketService defines the read methods the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	Info(ctx context.Context) service.Info
	Item(ctx context.Context, id uint64) (domain.ItemRecord, error)
	Items(ctx context.Context) []domain.ItemRecord
	Unsold(ctx context.Context) []domain.MarketItem
	TokensOf(ctx context.Context, acct common.Address) []domain.MarketItem
	OwnerOf(ctx context.Context, id uint64) (domain.Custody, string, error)
	Balance(ctx context.Context, acct common.Address) *big.Int
}

// MarketHandler serves the catalogue read endpoints.
type MarketHandler struct {
	market MarketService
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(market MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		market: market,
		logger: logger,
	}
}

// GetInfo returns the catalogue summary.
// GET /api/info
func (h *MarketHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.market.Info(r.Context()))
}

// listItemsResponse wraps the item list output with a count.
type listItemsResponse struct {
	Items []domain.ItemRecord `json:"items"`
	Total int                 `json:"total"`
}

// ListItems returns the full catalogue, sold and unsold.
// GET /api/items
func (h *MarketHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.market.Items(r.Context())
	writeJSON(w, http.StatusOK, listItemsResponse{
		Items: items,
		Total: len(items),
	})
}

// GetItem returns a single listing by asset id.
// GET /api/items/{id}
func (h *MarketHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathAssetID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.market.Item(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// listUnsoldResponse wraps the unsold list output with a count.
type listUnsoldResponse struct {
	Items []domain.MarketItem `json:"items"`
	Total int                 `json:"total"`
}

// ListUnsold returns all items still up for sale.
// GET /api/items/unsold
func (h *MarketHandler) ListUnsold(w http.ResponseWriter, r *http.Request) {
	items := h.market.Unsold(r.Context())
	writeJSON(w, http.StatusOK, listUnsoldResponse{
		Items: items,
		Total: len(items),
	})
}

// ListAccountTokens returns the items the account holds or has actively
// listed for sale.
// GET /api/accounts/{address}/tokens
func (h *MarketHandler) ListAccountTokens(w http.ResponseWriter, r *http.Request) {
	acct, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := h.market.TokensOf(r.Context(), acct)
	writeJSON(w, http.StatusOK, listUnsoldResponse{
		Items: items,
		Total: len(items),
	})
}

// GetAccountBalance returns the spendable currency balance of an account.
// GET /api/accounts/{address}/balance
func (h *MarketHandler) GetAccountBalance(w http.ResponseWriter, r *http.Request) {
	acct, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": acct.Hex(),
		"balance": h.market.Balance(r.Context(), acct),
	})
}

// GetAssetOwner returns the current custody and metadata location of an asset.
// GET /api/assets/{id}/owner
func (h *MarketHandler) GetAssetOwner(w http.ResponseWriter, r *http.Request) {
	id, err := pathAssetID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	holder, uri, err := h.market.OwnerOf(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"asset_id":     id,
		"owner":        holder,
		"metadata_uri": uri,
	})
}
