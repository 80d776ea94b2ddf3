package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// PositionHandler serves the open-position endpoint.
type PositionHandler struct {
	positions domain.PositionStore
	settings  domain.SettingsStore
	market    domain.MarketData
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given stores and
// market data provider.
func NewPositionHandler(positions domain.PositionStore, settings domain.SettingsStore, market domain.MarketData, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		settings:  settings,
		market:    market,
		logger:    logger,
	}
}

// positionResponse is the detailed open-position view, with the live quote
// and unrealized P/L when a quote is available.
type positionResponse struct {
	Symbol           string    `json:"symbol"`
	Type             string    `json:"type"`
	EntryPrice       float64   `json:"entry_price"`
	Quantity         int64     `json:"quantity"`
	PositionSize     float64   `json:"position_size"`
	EntryTime        time.Time `json:"entry_time"`
	RealTrade        bool      `json:"real_trade"`
	OrderID          string    `json:"order_id,omitempty"`
	TakeProfitTarget float64   `json:"take_profit_target"`
	StopLossTarget   float64   `json:"stop_loss_target"`
	CurrentPrice     *float64  `json:"current_price,omitempty"`
	UnrealizedPnL    *float64  `json:"unrealized_pnl,omitempty"`
}

// GetPosition returns the open short with live P/L, or a null position when
// the account is flat.
// GET /api/position
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := h.positions.Get(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"position": nil})
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get position failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get position")
		return
	}

	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get settings failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}

	resp := positionResponse{
		Symbol:           pos.Symbol,
		Type:             string(pos.Type),
		EntryPrice:       pos.EntryPrice,
		Quantity:         pos.Quantity,
		PositionSize:     pos.PositionSize,
		EntryTime:        pos.EntryTime,
		RealTrade:        pos.RealTrade,
		OrderID:          pos.OrderID,
		TakeProfitTarget: pos.TakeProfitTarget(settings.TakeProfitPct),
		StopLossTarget:   pos.StopLossTarget(settings.StopLossPct),
	}

	// The live quote is best effort; a data outage should not hide the
	// position itself.
	if quote, err := h.market.Latest(r.Context(), pos.Symbol); err == nil {
		price := quote.Last
		pnl := pos.UnrealizedPnL(price)
		resp.CurrentPrice = &price
		resp.UnrealizedPnL = &pnl
	} else {
		h.logger.WarnContext(r.Context(), "handler: live quote unavailable",
			slog.String("symbol", pos.Symbol),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, map[string]any{"position": resp})
}
