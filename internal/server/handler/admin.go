package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/boogiefi/marketd/internal/domain"
)

// AdminService defines the admin methods the handler requires from the
// service layer.
type AdminService interface {
	UpdateRoyaltyFee(ctx context.Context, caller common.Address, newFee *big.Int) (domain.LedgerEvent, error)
}

// AdminHandler serves the admin endpoints.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler with the given service and logger.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		logger: logger,
	}
}

// updateFeeRequest is the body for the royalty fee endpoint. The caller must
// be the admin identity; the fee is a decimal wei string.
type updateFeeRequest struct {
	Caller string `json:"caller"`
	Fee    string `json:"fee"`
}

// UpdateRoyaltyFee changes the royalty rate applied to future listings.
// PUT /api/admin/royalty-fee
func (h *AdminHandler) UpdateRoyaltyFee(w http.ResponseWriter, r *http.Request) {
	var req updateFeeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fee, err := parseWei("fee", req.Fee)
	if err != nil || fee.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "fee must be a non-negative wei amount")
		return
	}

	ev, err := h.admin.UpdateRoyaltyFee(r.Context(), caller, fee)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: fee update rejected",
			slog.String("caller", caller.Hex()),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ev)
}
