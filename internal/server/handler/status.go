package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// Runtime reports the trading loop state for the dashboard.
type Runtime interface {
	Running() bool
	Status() domain.MarketStatus
}

// StatusHandler serves the bot status endpoint for the dashboard.
type StatusHandler struct {
	mode      string
	runtime   Runtime
	positions domain.PositionStore
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler with the given mode, runtime, and
// position store. Runtime may be nil in server mode, in which case the bot is
// reported as not running.
func NewStatusHandler(mode string, runtime Runtime, positions domain.PositionStore, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		mode:      mode,
		runtime:   runtime,
		positions: positions,
		logger:    logger,
	}
}

// positionSummary is the compact open-position view embedded in status.
type positionSummary struct {
	Symbol     string    `json:"symbol"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   int64     `json:"quantity"`
	EntryTime  time.Time `json:"entry_time"`
	RealTrade  bool      `json:"real_trade"`
}

// GetStatus responds with the current mode, trading loop state, market
// session status, and a summary of the open position if any.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":    h.mode,
		"running": false,
	}

	if h.runtime != nil {
		resp["running"] = h.runtime.Running()
		status := h.runtime.Status()
		market := map[string]any{
			"open":  status.Open,
			"state": status.State,
		}
		if !status.NextOpen.IsZero() {
			market["next_open"] = status.NextOpen.Format(time.RFC3339)
		}
		if !status.NextClose.IsZero() {
			market["next_close"] = status.NextClose.Format(time.RFC3339)
		}
		resp["market"] = market
	}

	pos, err := h.positions.Get(r.Context())
	switch {
	case err == nil:
		resp["position"] = positionSummary{
			Symbol:     pos.Symbol,
			EntryPrice: pos.EntryPrice,
			Quantity:   pos.Quantity,
			EntryTime:  pos.EntryTime,
			RealTrade:  pos.RealTrade,
		}
	case errors.Is(err, domain.ErrNotFound):
		resp["position"] = nil
	default:
		h.logger.ErrorContext(r.Context(), "handler: status position lookup failed",
			slog.String("error", err.Error()),
		)
		resp["position"] = nil
	}

	writeJSON(w, http.StatusOK, resp)
}
