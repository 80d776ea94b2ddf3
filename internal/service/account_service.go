// Package service holds the application services behind the HTTP control
// surface: account settings and analytics, watchlist management, and
// watchlist price refreshes.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// metricsWindow bounds how many history rows a metrics pass reads. A
// single-position bot trading a handful of cycles per day stays far below
// this for years.
const metricsWindow = 10000

// AccountService manages account settings, resets, and performance
// analytics over the trade history.
type AccountService struct {
	settings     domain.SettingsStore
	transactions domain.TransactionStore
	positions    domain.PositionStore
	audit        domain.AuditStore
	logger       *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(
	settings domain.SettingsStore,
	transactions domain.TransactionStore,
	positions domain.PositionStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		settings:     settings,
		transactions: transactions,
		positions:    positions,
		audit:        audit,
		logger:       logger.With(slog.String("component", "account_service")),
	}
}

// Settings returns the current account settings.
func (s *AccountService) Settings(ctx context.Context) (domain.AccountSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return domain.AccountSettings{}, fmt.Errorf("account_service: get settings: %w", err)
	}
	return settings, nil
}

// SettingsUpdate carries the tunable parameters an operator may change.
// Nil fields are left untouched.
type SettingsUpdate struct {
	TakeProfitPct   *float64
	StopLossPct     *float64
	PositionSizePct *float64
	InitialBalance  *float64
}

// UpdateSettings validates and applies a partial settings update. Changing
// the initial balance does not touch the current balance; use Reset for
// that.
func (s *AccountService) UpdateSettings(ctx context.Context, upd SettingsUpdate) (domain.AccountSettings, error) {
	if err := validateUpdate(upd); err != nil {
		return domain.AccountSettings{}, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return domain.AccountSettings{}, fmt.Errorf("account_service: get settings: %w", err)
	}

	if upd.TakeProfitPct != nil {
		settings.TakeProfitPct = *upd.TakeProfitPct
	}
	if upd.StopLossPct != nil {
		settings.StopLossPct = *upd.StopLossPct
	}
	if upd.PositionSizePct != nil {
		settings.PositionSizePct = *upd.PositionSizePct
	}
	if upd.InitialBalance != nil {
		settings.InitialBalance = *upd.InitialBalance
	}

	if err := s.settings.Update(ctx, settings); err != nil {
		return domain.AccountSettings{}, fmt.Errorf("account_service: update settings: %w", err)
	}

	s.logger.InfoContext(ctx, "settings updated",
		slog.Float64("take_profit_pct", settings.TakeProfitPct),
		slog.Float64("stop_loss_pct", settings.StopLossPct),
		slog.Float64("position_size_pct", settings.PositionSizePct))

	return settings, nil
}

// validateUpdate rejects out-of-range parameter values before anything is
// persisted.
func validateUpdate(upd SettingsUpdate) error {
	check := func(name string, v *float64, min, max float64) error {
		if v == nil {
			return nil
		}
		if *v < min || *v > max {
			return fmt.Errorf("account_service: %w: %s must be between %g and %g, got %g", domain.ErrInvalidParam, name, min, max, *v)
		}
		return nil
	}
	if err := check("take_profit_pct", upd.TakeProfitPct, 0.1, 50); err != nil {
		return err
	}
	if err := check("stop_loss_pct", upd.StopLossPct, 0.1, 50); err != nil {
		return err
	}
	if err := check("position_size_pct", upd.PositionSizePct, 1, 100); err != nil {
		return err
	}
	if upd.InitialBalance != nil && *upd.InitialBalance <= 0 {
		return fmt.Errorf("account_service: %w: initial_balance must be positive, got %g", domain.ErrInvalidParam, *upd.InitialBalance)
	}
	return nil
}

// Reset wipes the trading record: the open position and trade history are
// cleared and settings return to defaults. A positive newBalance overrides
// the default starting balance. The watchlist is preserved.
func (s *AccountService) Reset(ctx context.Context, newBalance float64) (domain.AccountSettings, error) {
	if err := s.positions.Clear(ctx); err != nil {
		return domain.AccountSettings{}, fmt.Errorf("account_service: reset clear position: %w", err)
	}
	if err := s.transactions.Clear(ctx); err != nil {
		return domain.AccountSettings{}, fmt.Errorf("account_service: reset clear history: %w", err)
	}

	settings, err := s.settings.Reset(ctx)
	if err != nil {
		return domain.AccountSettings{}, fmt.Errorf("account_service: reset settings: %w", err)
	}
	if newBalance > 0 {
		settings.InitialBalance = newBalance
		settings.CurrentBalance = newBalance
		if err := s.settings.Update(ctx, settings); err != nil {
			return domain.AccountSettings{}, fmt.Errorf("account_service: reset set balance: %w", err)
		}
	}

	if err := s.audit.Log(ctx, "account_reset", map[string]any{
		"initial_balance": settings.InitialBalance,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}

	s.logger.InfoContext(ctx, "account reset",
		slog.Float64("initial_balance", settings.InitialBalance))

	return settings, nil
}

// Metrics computes performance statistics over closed trades.
func (s *AccountService) Metrics(ctx context.Context) (domain.PerformanceMetrics, error) {
	txs, err := s.transactions.List(ctx, domain.ListOpts{Limit: metricsWindow})
	if err != nil {
		return domain.PerformanceMetrics{}, fmt.Errorf("account_service: list history: %w", err)
	}
	return ComputeMetrics(txs), nil
}

// ComputeMetrics derives performance statistics from a transaction history.
// Only close rows count as trades; opens carry no realized P/L.
func ComputeMetrics(txs []domain.Transaction) domain.PerformanceMetrics {
	var m domain.PerformanceMetrics
	var grossProfit, grossLoss float64

	for _, tx := range txs {
		if tx.Action != domain.ActionShortClose {
			continue
		}
		m.TotalTrades++
		m.TotalPnL += tx.PnL

		switch {
		case tx.PnL > 0:
			m.WinningTrades++
			grossProfit += tx.PnL
			if tx.PnL > m.LargestWin {
				m.LargestWin = tx.PnL
			}
		case tx.PnL < 0:
			m.LosingTrades++
			grossLoss += -tx.PnL
			if tx.PnL < m.LargestLoss {
				m.LargestLoss = tx.PnL
			}
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}
	if m.WinningTrades > 0 {
		m.AverageWin = grossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = -grossLoss / float64(m.LosingTrades)
	}

	return m
}
