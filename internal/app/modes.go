package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lachlanbr/shortbot/internal/domain"
	"github.com/lachlanbr/shortbot/internal/scheduler"
	"github.com/lachlanbr/shortbot/internal/scoring"
	"github.com/lachlanbr/shortbot/internal/server"
	"github.com/lachlanbr/shortbot/internal/server/handler"
	"github.com/lachlanbr/shortbot/internal/server/ws"
	"github.com/lachlanbr/shortbot/internal/service"
	"github.com/lachlanbr/shortbot/internal/trader"
)

// traderLockKey is the distributed lock that guarantees a single trading
// loop across bot instances.
const traderLockKey = "trader"

// TradeMode runs the full bot: the tick-driven trading loop plus the HTTP
// API and WebSocket hub when the server is enabled. A distributed lock
// ensures only one instance trades at a time.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	// Hold the trader lock for the lifetime of this process; the lock
	// manager renews it in the background. A second instance starting
	// against the same Redis refuses to trade.
	unlock, err := deps.LockManager.Acquire(ctx, traderLockKey, time.Minute)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("trade mode: another instance is already trading: %w", err)
		}
		return fmt.Errorf("trade mode: acquire trader lock: %w", err)
	}
	defer unlock()

	g, ctx := errgroup.WithContext(ctx)

	scorer := scoring.NewScorer(a.logger)
	quoteSvc := service.NewQuoteService(deps.WatchlistStore, deps.Market, scorer, deps.SignalBus, a.logger)
	watchlistSvc := service.NewWatchlistService(deps.WatchlistStore, deps.Market, a.logger)
	accountSvc := service.NewAccountService(deps.SettingsStore, deps.TransactionStore, deps.PositionStore, deps.AuditStore, a.logger)

	trd := trader.New(trader.Deps{
		Positions:    deps.PositionStore,
		Transactions: deps.TransactionStore,
		Settings:     deps.SettingsStore,
		Market:       deps.Market,
		Broker:       deps.Broker,
		Bus:          deps.SignalBus,
		Notifier:     deps.Notifier,
		Audit:        deps.AuditStore,
		Logger:       a.logger,
	})

	loc := scheduler.SydneyLocation()
	sched := scheduler.New(scheduler.Config{
		RefreshInterval: a.cfg.Trading.RefreshInterval.Duration,
		CycleInterval:   a.cfg.Trading.CycleInterval.Duration,
		MinShortScore:   a.cfg.Trading.MinShortScore,
		Location:        loc,
	}, scheduler.Deps{
		Watchlist: deps.WatchlistStore,
		Positions: deps.PositionStore,
		Settings:  deps.SettingsStore,
		Market:    deps.Market,
		Trader:    trd,
		Scorer:    scorer,
		Refresher: quoteSvc,
		Audit:     deps.AuditStore,
		Logger:    a.logger,
	})

	if a.cfg.Trading.AutoStart {
		sched.Start()
	} else {
		a.logger.InfoContext(ctx, "trading.auto_start is false, waiting for API start call")
	}

	g.Go(func() error {
		err := sched.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, serverServices{
			watchlist: watchlistSvc,
			account:   accountSvc,
			quotes:    quoteSvc,
			runtime:   sched,
			location:  loc,
		})
	}

	return g.Wait()
}

// ServerMode runs the HTTP API and WebSocket hub without a trading loop.
// Useful for dashboards pointed at a database another instance trades into.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	scorer := scoring.NewScorer(a.logger)
	quoteSvc := service.NewQuoteService(deps.WatchlistStore, deps.Market, scorer, deps.SignalBus, a.logger)
	watchlistSvc := service.NewWatchlistService(deps.WatchlistStore, deps.Market, a.logger)
	accountSvc := service.NewAccountService(deps.SettingsStore, deps.TransactionStore, deps.PositionStore, deps.AuditStore, a.logger)

	a.startHTTPServer(ctx, g, deps, serverServices{
		watchlist: watchlistSvc,
		account:   accountSvc,
		quotes:    quoteSvc,
		runtime:   nil,
		location:  scheduler.SydneyLocation(),
	})

	return g.Wait()
}

// ArchiveMode performs a single archival pass: transactions older than the
// configured retention are uploaded to object storage and deleted from the
// database, then the process exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	cutoff := time.Now().UTC().Add(-retention)

	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
		slog.Time("cutoff", cutoff),
	)

	count, err := deps.Archiver.ArchiveTransactions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}

	a.logger.InfoContext(ctx, "archive complete", slog.Int64("archived", count))
	return nil
}

// serverServices carries the mode-specific services the HTTP surface needs.
// Runtime is nil in server mode.
type serverServices struct {
	watchlist *service.WatchlistService
	account   *service.AccountService
	quotes    *service.QuoteService
	runtime   *scheduler.Scheduler
	location  *time.Location
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server shuts down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs serverServices) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		err := hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// The Runtime interfaces are satisfied by *scheduler.Scheduler, but a
	// typed-nil scheduler must become a true nil interface.
	var runtime handler.Runtime
	var controller handler.RuntimeController
	if svcs.runtime != nil {
		runtime = svcs.runtime
		controller = svcs.runtime
	}

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(a.logger),
		Status:       handler.NewStatusHandler(a.cfg.Mode, runtime, deps.PositionStore, a.logger),
		Watchlist:    handler.NewWatchlistHandler(svcs.watchlist, a.logger),
		Position:     handler.NewPositionHandler(deps.PositionStore, deps.SettingsStore, deps.Market, a.logger),
		Transactions: handler.NewTransactionHandler(deps.TransactionStore, a.logger),
		Account:      handler.NewAccountHandler(svcs.account, deps.Broker, a.logger),
		Trading:      handler.NewTradingHandler(controller, a.logger),
		Market:       handler.NewMarketHandler(svcs.quotes, svcs.location, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
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
