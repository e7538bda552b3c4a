package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/boogiefi/marketd/internal/domain"
)

// EventService defines the event log read methods the handler requires from
// the service layer.
type EventService interface {
	RecentEvents(ctx context.Context, limit int) ([]domain.LedgerEvent, error)
}

// EventHandler serves the event log endpoints.
type EventHandler struct {
	events EventService
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler with the given service and logger.
func NewEventHandler(events EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger,
	}
}

// listEventsResponse wraps the recent events output with a count.
type listEventsResponse struct {
	Events []domain.LedgerEvent `json:"events"`
	Total  int                  `json:"total"`
}

// ListRecent returns the most recent ledger events, newest first.
// GET /api/events/recent?limit=50
func (h *EventHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.RecentEvents(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list recent events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, listEventsResponse{
		Events: events,
		Total:  len(events),
	})
}
