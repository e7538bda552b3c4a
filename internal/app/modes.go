package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/boogiefi/marketd/internal/server"
	"github.com/boogiefi/marketd/internal/server/handler"
	"github.com/boogiefi/marketd/internal/server/ws"
	"github.com/boogiefi/marketd/internal/service"
)

// ServerMode runs the HTTP + WebSocket API over the ledger core.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs only the periodic event archival loop.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode requires archive.enabled and S3 configuration")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiveLoop(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and the archival loop together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	if deps.Archiver != nil {
		a.startArchiveLoop(ctx, g, deps)
	} else {
		a.logger.InfoContext(ctx, "archive disabled, running API only")
	}
	return g.Wait()
}

// startHTTPServer adds the API server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	svc := deps.Ledger

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Channel:   service.EventsChannel,
		Catalogue: svc.Info(ctx).Name,
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Market: handler.NewMarketHandler(svc, a.logger),
		Trades: handler.NewTradeHandler(svc, a.logger),
		Admin:  handler.NewAdminHandler(svc, a.logger),
		Events: handler.NewEventHandler(svc, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startArchiveLoop adds the periodic event archival goroutine to the given
// errgroup. Each cycle uploads events older than the retention window to
// blob storage and, when pruning is enabled, deletes them from the primary
// store afterwards.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := a.cfg.Archive.RetentionDays

	runOnce := func() {
		cutoff := time.Now().UTC().AddDate(0, 0, -retention)

		archived, err := deps.Archiver.ArchiveEvents(ctx, cutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "archive cycle failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if archived == 0 {
			return
		}

		if a.cfg.Archive.Prune {
			if _, err := deps.Archiver.PruneEvents(ctx, cutoff); err != nil {
				a.logger.ErrorContext(ctx, "archive prune failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}

	g.Go(func() error {
		a.logger.InfoContext(ctx, "archive loop started",
			slog.Duration("interval", interval),
			slog.Int("retention_days", retention),
		)

		runOnce()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				runOnce()
			}
		}
	})
}
