package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lachlanbr/shortbot/internal/domain"
	"github.com/lachlanbr/shortbot/internal/service"
)

// AccountAPI defines the methods that the account handler requires.
type AccountAPI interface {
	Settings(ctx context.Context) (domain.AccountSettings, error)
	UpdateSettings(ctx context.Context, upd service.SettingsUpdate) (domain.AccountSettings, error)
	Reset(ctx context.Context, newBalance float64) (domain.AccountSettings, error)
	Metrics(ctx context.Context) (domain.PerformanceMetrics, error)
}

// AccountHandler serves the account settings and performance endpoints.
type AccountHandler struct {
	account AccountAPI
	broker  domain.Brokerage // nil when running simulated
	logger  *slog.Logger
}

// NewAccountHandler creates an AccountHandler. Broker may be nil; the
// brokerage section of the account response is omitted in that case.
func NewAccountHandler(account AccountAPI, broker domain.Brokerage, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		account: account,
		broker:  broker,
		logger:  logger,
	}
}

// settingsResponse is the JSON view of account settings.
type settingsResponse struct {
	InitialBalance  float64 `json:"initial_balance"`
	CurrentBalance  float64 `json:"current_balance"`
	TakeProfitPct   float64 `json:"take_profit_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	PositionSizePct float64 `json:"position_size_pct"`
}

// metricsResponse is the JSON view of closed-trade performance.
type metricsResponse struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	ProfitFactor  float64 `json:"profit_factor"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
}

// brokerageResponse is the JSON view of live brokerage account state.
type brokerageResponse struct {
	ID          string  `json:"id"`
	Currency    string  `json:"currency"`
	BuyingPower float64 `json:"buying_power"`
	Equity      float64 `json:"equity"`
}

func toSettingsResponse(s domain.AccountSettings) settingsResponse {
	return settingsResponse{
		InitialBalance:  s.InitialBalance,
		CurrentBalance:  s.CurrentBalance,
		TakeProfitPct:   s.TakeProfitPct,
		StopLossPct:     s.StopLossPct,
		PositionSizePct: s.PositionSizePct,
	}
}

// GetAccount returns the account settings, performance metrics, and the live
// brokerage account when brokerage trading is configured.
// GET /api/account
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	settings, err := h.account.Settings(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get settings failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get account settings")
		return
	}

	metrics, err := h.account.Metrics(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get metrics failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get performance metrics")
		return
	}

	resp := map[string]any{
		"settings": toSettingsResponse(settings),
		"metrics": metricsResponse{
			TotalTrades:   metrics.TotalTrades,
			WinningTrades: metrics.WinningTrades,
			LosingTrades:  metrics.LosingTrades,
			WinRate:       metrics.WinRate,
			TotalPnL:      metrics.TotalPnL,
			ProfitFactor:  metrics.ProfitFactor,
			AverageWin:    metrics.AverageWin,
			AverageLoss:   metrics.AverageLoss,
			LargestWin:    metrics.LargestWin,
			LargestLoss:   metrics.LargestLoss,
		},
	}

	// Brokerage state is best effort; an API outage should not hide the
	// simulated account.
	if h.broker != nil {
		if acct, err := h.broker.Account(r.Context()); err == nil {
			resp["brokerage"] = brokerageResponse{
				ID:          acct.ID,
				Currency:    acct.Currency,
				BuyingPower: acct.BuyingPower,
				Equity:      acct.Equity,
			}
		} else {
			h.logger.WarnContext(r.Context(), "handler: brokerage account unavailable",
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// updateSettingsRequest is the body for a partial settings update. Omitted
// fields are left unchanged.
type updateSettingsRequest struct {
	TakeProfitPct   *float64 `json:"take_profit_pct"`
	StopLossPct     *float64 `json:"stop_loss_pct"`
	PositionSizePct *float64 `json:"position_size_pct"`
	InitialBalance  *float64 `json:"initial_balance"`
}

// UpdateSettings applies a partial settings update.
// PUT /api/account/settings
func (h *AccountHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	settings, err := h.account.UpdateSettings(r.Context(), service.SettingsUpdate{
		TakeProfitPct:   req.TakeProfitPct,
		StopLossPct:     req.StopLossPct,
		PositionSizePct: req.PositionSizePct,
		InitialBalance:  req.InitialBalance,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParam) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: update settings failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// resetAccountRequest is the body for an account reset. NewBalance of zero
// keeps the configured default starting balance.
type resetAccountRequest struct {
	NewBalance float64 `json:"new_balance"`
}

// ResetAccount wipes the open position and trade history and restores the
// account settings to their defaults.
// POST /api/account/reset
func (h *AccountHandler) ResetAccount(w http.ResponseWriter, r *http.Request) {
	var req resetAccountRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if req.NewBalance < 0 {
		writeError(w, http.StatusBadRequest, "new_balance must not be negative")
		return
	}

	settings, err := h.account.Reset(r.Context(), req.NewBalance)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: account reset failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to reset account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "reset",
		"settings": toSettingsResponse(settings),
	})
}
