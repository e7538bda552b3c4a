// Package server exposes the marketplace ledger over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/boogiefi/marketd/internal/domain"
	"github.com/boogiefi/marketd/internal/server/handler"
	"github.com/boogiefi/marketd/internal/server/middleware"
	"github.com/boogiefi/marketd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimitPerMin bounds requests per client IP per minute; 0 disables.
	RateLimitPerMin int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Market *handler.MarketHandler
	Trades *handler.TradeHandler
	Admin  *handler.AdminHandler
	Events *handler.EventHandler
}

// Server is the headless HTTP + WebSocket API for the marketplace ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, logging, CORS, auth) and attaches
// the WebSocket hub. The limiter may be nil when rate limiting is disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Catalogue read endpoints.
	mux.HandleFunc("GET /api/info", handlers.Market.GetInfo)
	mux.HandleFunc("GET /api/items", handlers.Market.ListItems)
	mux.HandleFunc("GET /api/items/unsold", handlers.Market.ListUnsold)
	mux.HandleFunc("GET /api/items/{id}", handlers.Market.GetItem)
	mux.HandleFunc("GET /api/assets/{id}/owner", handlers.Market.GetAssetOwner)

	// Account endpoints.
	mux.HandleFunc("GET /api/accounts/{address}/tokens", handlers.Market.ListAccountTokens)
	mux.HandleFunc("GET /api/accounts/{address}/balance", handlers.Market.GetAccountBalance)
	mux.HandleFunc("POST /api/accounts/{address}/deposit", handlers.Trades.Deposit)

	// Trade endpoints.
	mux.HandleFunc("POST /api/items/{id}/buy", handlers.Trades.BuyItem)
	mux.HandleFunc("POST /api/items/{id}/resell", handlers.Trades.ResellItem)

	// Admin endpoints.
	mux.HandleFunc("PUT /api/admin/royalty-fee", handlers.Admin.UpdateRoyaltyFee)

	// Event log endpoint.
	mux.HandleFunc("GET /api/events/recent", handlers.Events.ListRecent)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply per-client rate limiting when configured.
	if limiter != nil && cfg.RateLimitPerMin > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute)(h)
	}

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
