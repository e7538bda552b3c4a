package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/boogiefi/marketd/internal/domain"
)

// TradeService defines the mutating methods the trade handler requires from
// the service layer.
type TradeService interface {
	Buy(ctx context.Context, id uint64, payment *big.Int, buyer common.Address) (domain.LedgerEvent, error)
	Resell(ctx context.Context, id uint64, newPrice, royalty *big.Int, relister common.Address) (domain.LedgerEvent, error)
	Deposit(ctx context.Context, acct common.Address, amount *big.Int) error
}

// TradeHandler serves the buy, resell, and deposit endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

// buyRequest is the body for the buy endpoint. Payment is a decimal wei
// string and must equal the asking price exactly.
type buyRequest struct {
	Buyer   string `json:"buyer"`
	Payment string `json:"payment"`
}

// BuyItem completes a listing on behalf of the buyer.
// POST /api/items/{id}/buy
func (h *TradeHandler) BuyItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathAssetID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req buyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	buyer, err := parseAddress("buyer", req.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payment, err := parseWei("payment", req.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := h.trades.Buy(r.Context(), id, payment, buyer)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: buy rejected",
			slog.Uint64("asset_id", id),
			slog.String("buyer", buyer.Hex()),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ev)
}

// resellRequest is the body for the resell endpoint. Price and royalty are
// decimal wei strings; royalty must equal the current fee exactly.
type resellRequest struct {
	Seller  string `json:"seller"`
	Price   string `json:"price"`
	Royalty string `json:"royalty"`
}

// ResellItem relists a bought asset on behalf of its holder.
// POST /api/items/{id}/resell
func (h *TradeHandler) ResellItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathAssetID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req resellRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	seller, err := parseAddress("seller", req.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	price, err := parseWei("price", req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	royalty, err := parseWei("royalty", req.Royalty)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := h.trades.Resell(r.Context(), id, price, royalty, seller)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: resell rejected",
			slog.Uint64("asset_id", id),
			slog.String("seller", seller.Hex()),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ev)
}

// depositRequest is the body for the deposit endpoint.
type depositRequest struct {
	Amount string `json:"amount"`
}

// Deposit credits spendable currency to an account.
// POST /api/accounts/{address}/deposit
func (h *TradeHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	acct, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseWei("deposit", req.Amount)
	if err != nil || amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "deposit amount must be a positive wei amount")
		return
	}

	if err := h.trades.Deposit(r.Context(), acct, amount); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": acct.Hex(),
		"amount":  amount,
	})
}
