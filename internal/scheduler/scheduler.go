// Package scheduler drives the trading loop: watchlist price refreshes,
// trading-hours gating, exit monitoring for the open short, and candidate
// selection when flat. Decisions run inside discrete ticks so at most one
// tick mutates trading state at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// tickInterval is the granularity of the driving ticker. Each tick decides
// for itself whether a refresh or trading cycle is actually due.
const tickInterval = time.Second

// PositionTrader is the slice of the trader the scheduler drives.
type PositionTrader interface {
	OpenShort(ctx context.Context, symbol string) (domain.Position, domain.Transaction, error)
	CloseShort(ctx context.Context, reason string, quotedPrice float64) (domain.Transaction, error)
}

// Scorer rates a symbol's bar history for shortability.
type Scorer interface {
	Score(symbol string, bars []domain.Bar) domain.Recommendation
}

// PriceRefresher updates stored watchlist prices from the market.
type PriceRefresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// Config holds the scheduler's timing and selection parameters.
type Config struct {
	// RefreshInterval is the watchlist price refresh cadence.
	RefreshInterval time.Duration
	// CycleInterval is how long a position is held before rotation, and the
	// minimum gap between candidate selections.
	CycleInterval time.Duration
	// MinShortScore is the lowest score that still opens a position.
	MinShortScore int
	// Location is the exchange timezone for the trading-hours gate.
	Location *time.Location
}

// Deps carries the scheduler's collaborators.
type Deps struct {
	Watchlist domain.WatchlistStore
	Positions domain.PositionStore
	Settings  domain.SettingsStore
	Market    domain.MarketData
	Trader    PositionTrader
	Scorer    Scorer
	Refresher PriceRefresher
	Audit     domain.AuditStore
	Logger    *slog.Logger
}

// Scheduler owns the trading loop state. It is safe for concurrent use: the
// control surface (Start, Stop, Refresh) and the tick loop serialise on one
// mutex, so a tick always runs to completion before the next begins.
type Scheduler struct {
	cfg       Config
	watchlist domain.WatchlistStore
	positions domain.PositionStore
	settings  domain.SettingsStore
	market    domain.MarketData
	trader    PositionTrader
	scorer    Scorer
	refresher PriceRefresher
	audit     domain.AuditStore
	logger    *slog.Logger

	mu          sync.Mutex
	active      bool
	lastRefresh time.Time
	lastCycle   time.Time
}

// New creates a Scheduler. Trading starts inactive; call Start (or let the
// app do it) before ticks have any effect.
func New(cfg Config, deps Deps) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = SydneyLocation()
	}
	return &Scheduler{
		cfg:       cfg,
		watchlist: deps.Watchlist,
		positions: deps.Positions,
		settings:  deps.Settings,
		market:    deps.Market,
		trader:    deps.Trader,
		scorer:    deps.Scorer,
		refresher: deps.Refresher,
		audit:     deps.Audit,
		logger:    deps.Logger.With(slog.String("component", "scheduler")),
	}
}

// Start activates trading. The first tick after Start treats both the
// refresh and the trading cycle as due.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.lastRefresh = time.Time{}
	s.lastCycle = time.Time{}
	s.logger.Info("trading started")
}

// Stop deactivates trading, closing any open position first so the account
// never carries an unattended short. The close error is returned but trading
// is deactivated regardless.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	s.active = false

	_, err := s.trader.CloseShort(ctx, domain.ReasonManualShutdown, 0)
	if err != nil && !errors.Is(err, domain.ErrNoPosition) {
		s.logger.ErrorContext(ctx, "shutdown close failed",
			slog.String("error", err.Error()))
		return fmt.Errorf("scheduler: shutdown close: %w", err)
	}

	s.logger.Info("trading stopped")
	return nil
}

// Running reports whether trading is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Refresh forces an immediate watchlist price refresh, regardless of the
// refresh interval. Used by the manual refresh endpoint.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.refresher.RefreshAll(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: manual refresh: %w", err)
	}
	s.lastRefresh = time.Now()
	s.logger.InfoContext(ctx, "manual refresh complete", slog.Int("updated", updated))
	return nil
}

// Status summarises the exchange state at the current time.
func (s *Scheduler) Status() domain.MarketStatus {
	return MarketStatusAt(time.Now(), s.cfg.Location)
}

// Run drives Tick on a one-second ticker until ctx ends. On exit it stops
// trading, which closes any open position with a "Manual shutdown" record.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "scheduler loop starting",
		slog.Duration("refresh_interval", s.cfg.RefreshInterval),
		slog.Duration("cycle_interval", s.cfg.CycleInterval),
		slog.Int("min_short_score", s.cfg.MinShortScore),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Best-effort close with a fresh context; the loop context is
			// already cancelled.
			shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := s.Stop(shutCtx)
			cancel()
			if err != nil {
				s.logger.Error("shutdown stop failed", slog.String("error", err.Error()))
			}
			s.logger.Info("scheduler loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick executes one pass of the trading loop at the supplied wall-clock
// time. Any panic-free failure is contained here: per-symbol errors are
// skipped, trade errors are logged and audited, and the next tick proceeds
// normally.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}

	// 1. Watchlist refresh when due.
	if s.refreshDue(now) {
		if updated, err := s.refresher.RefreshAll(ctx); err != nil {
			s.logger.WarnContext(ctx, "watchlist refresh failed",
				slog.String("error", err.Error()))
		} else {
			s.logger.DebugContext(ctx, "watchlist refreshed", slog.Int("updated", updated))
		}
		s.lastRefresh = now
	}

	// 2. Trading-hours gate. Outside hours the only permitted action is
	// flattening an open position.
	if !InTradingHours(now, s.cfg.Location) {
		s.closeIfOpen(ctx, domain.ReasonMarketClosed)
		return
	}

	pos, err := s.positions.Get(ctx)
	switch {
	case err == nil:
		s.managePosition(ctx, now, pos)
	case errors.Is(err, domain.ErrNotFound):
		s.selectCandidate(ctx, now)
	default:
		s.logger.ErrorContext(ctx, "position lookup failed",
			slog.String("error", err.Error()))
	}
}

func (s *Scheduler) refreshDue(now time.Time) bool {
	return s.lastRefresh.IsZero() || now.Sub(s.lastRefresh) >= s.cfg.RefreshInterval
}

func (s *Scheduler) cycleDue(now time.Time) bool {
	return s.lastCycle.IsZero() || now.Sub(s.lastCycle) >= s.cfg.CycleInterval
}

// managePosition checks the open short's exit conditions. Take-profit and
// stop-loss are evaluated before rotation; either one rewinds the cycle
// clock so the next in-hours tick immediately picks a new candidate.
func (s *Scheduler) managePosition(ctx context.Context, now time.Time, pos domain.Position) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "settings load failed",
			slog.String("error", err.Error()))
		return
	}

	quote, err := s.market.Latest(ctx, pos.Symbol)
	if err != nil {
		// Position stays open; retried next tick.
		s.logger.WarnContext(ctx, "exit check quote failed",
			slog.String("symbol", pos.Symbol),
			slog.String("error", err.Error()))
		return
	}
	price := quote.Last

	switch {
	case price <= pos.TakeProfitTarget(settings.TakeProfitPct):
		if s.close(ctx, domain.ReasonTakeProfit, price) {
			s.lastCycle = time.Time{}
		}
	case price >= pos.StopLossTarget(settings.StopLossPct):
		if s.close(ctx, domain.ReasonStopLoss, price) {
			s.lastCycle = time.Time{}
		}
	case s.cycleDue(now):
		if s.close(ctx, domain.ReasonCycleRotation, price) {
			s.lastCycle = now
		}
	}
}

// selectCandidate scores the watchlist and opens a short in the best
// candidate when a trading cycle is due. The cycle clock resets before
// scoring so a failed selection does not retry every tick.
func (s *Scheduler) selectCandidate(ctx context.Context, now time.Time) {
	if !s.cycleDue(now) {
		return
	}

	entries, err := s.watchlist.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "watchlist load failed",
			slog.String("error", err.Error()))
		return
	}
	if len(entries) == 0 {
		return
	}
	s.lastCycle = now

	best := s.bestCandidate(ctx, entries)
	if best == nil || best.Score < s.cfg.MinShortScore {
		s.logger.InfoContext(ctx, "no candidate cleared the bar this cycle",
			slog.Int("watchlist", len(entries)),
			slog.Int("min_score", s.cfg.MinShortScore))
		return
	}

	pos, _, err := s.trader.OpenShort(ctx, best.Symbol)
	if err != nil {
		s.logger.ErrorContext(ctx, "open failed",
			slog.String("symbol", best.Symbol),
			slog.String("error", err.Error()))
		s.auditEvent(ctx, "open_failed", map[string]any{
			"symbol": best.Symbol,
			"error":  err.Error(),
		})
		return
	}

	s.logger.InfoContext(ctx, "candidate opened",
		slog.String("symbol", pos.Symbol),
		slog.Int("score", best.Score),
		slog.String("action", string(best.Action)))
}

// bestCandidate scores every watchlist symbol and returns the shortable
// recommendation with the strictly highest score. Ties keep the first symbol
// in watchlist order. Per-symbol failures are logged and skipped.
func (s *Scheduler) bestCandidate(ctx context.Context, entries []domain.WatchlistEntry) *domain.Recommendation {
	var best *domain.Recommendation
	for _, entry := range entries {
		bars, err := s.market.History(ctx, entry.Symbol, domain.PeriodThreeMonths, domain.IntervalDay)
		if err != nil {
			s.logger.WarnContext(ctx, "history fetch failed, skipping symbol",
				slog.String("symbol", entry.Symbol),
				slog.String("error", err.Error()))
			continue
		}

		rec := s.scorer.Score(entry.Symbol, bars)
		if !rec.Action.Shortable() {
			continue
		}
		if best == nil || rec.Score > best.Score {
			r := rec
			best = &r
		}
	}
	return best
}

// closeIfOpen closes the current position when one exists; a flat account is
// a no-op.
func (s *Scheduler) closeIfOpen(ctx context.Context, reason string) {
	if _, err := s.positions.Get(ctx); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.ErrorContext(ctx, "position lookup failed",
				slog.String("error", err.Error()))
		}
		return
	}
	s.close(ctx, reason, 0)
}

// close covers the open short and reports whether the close went through.
func (s *Scheduler) close(ctx context.Context, reason string, price float64) bool {
	tx, err := s.trader.CloseShort(ctx, reason, price)
	if err != nil {
		if errors.Is(err, domain.ErrNoPosition) {
			return false
		}
		s.logger.ErrorContext(ctx, "close failed",
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		s.auditEvent(ctx, "close_failed", map[string]any{
			"reason": reason,
			"error":  err.Error(),
		})
		return false
	}

	s.logger.InfoContext(ctx, "position closed",
		slog.String("symbol", tx.Symbol),
		slog.String("reason", reason),
		slog.Float64("pnl", tx.PnL))
	return true
}

func (s *Scheduler) auditEvent(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()))
	}
}
