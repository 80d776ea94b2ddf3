package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// RuntimeController defines the trading loop controls that the trading
// handler requires. The scheduler implements it in trade mode.
type RuntimeController interface {
	Start()
	Stop(ctx context.Context) error
	Running() bool
	Refresh(ctx context.Context) error
}

// TradingHandler serves the start/stop/refresh control endpoints.
type TradingHandler struct {
	runtime RuntimeController
	logger  *slog.Logger
}

// NewTradingHandler creates a TradingHandler with the given controller and logger.
func NewTradingHandler(runtime RuntimeController, logger *slog.Logger) *TradingHandler {
	return &TradingHandler{
		runtime: runtime,
		logger:  logger,
	}
}

// StartTrading enables the trading loop. Idempotent.
// POST /api/trading/start
func (h *TradingHandler) StartTrading(w http.ResponseWriter, r *http.Request) {
	if h.runtime == nil {
		writeError(w, http.StatusConflict, "trading loop not available in this mode")
		return
	}

	h.runtime.Start()
	h.logger.InfoContext(r.Context(), "handler: trading started")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "started",
		"running": true,
	})
}

// StopTrading disables the trading loop. Any open position is closed with a
// manual-shutdown record before the call returns. Idempotent.
// POST /api/trading/stop
func (h *TradingHandler) StopTrading(w http.ResponseWriter, r *http.Request) {
	if h.runtime == nil {
		writeError(w, http.StatusConflict, "trading loop not available in this mode")
		return
	}

	if err := h.runtime.Stop(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: trading stop failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to stop trading")
		return
	}

	h.logger.InfoContext(r.Context(), "handler: trading stopped")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "stopped",
		"running": false,
	})
}

// TriggerRefresh forces an immediate watchlist price refresh outside the
// regular refresh interval.
// POST /api/trading/refresh
func (h *TradingHandler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if h.runtime == nil {
		writeError(w, http.StatusConflict, "trading loop not available in this mode")
		return
	}

	if err := h.runtime.Refresh(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: manual refresh failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to refresh prices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
