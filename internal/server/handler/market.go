package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
	"github.com/lachlanbr/shortbot/internal/scheduler"
)

// Analyzer defines the scoring lookup that the market handler requires.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (domain.Recommendation, error)
}

// MarketHandler serves market session status and on-demand symbol analysis.
type MarketHandler struct {
	analyzer Analyzer
	loc      *time.Location
	logger   *slog.Logger
}

// NewMarketHandler creates a MarketHandler. The location fixes which
// exchange clock session status is computed against.
func NewMarketHandler(analyzer Analyzer, loc *time.Location, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		analyzer: analyzer,
		loc:      loc,
		logger:   logger,
	}
}

// GetMarketStatus returns the exchange session state.
// GET /api/market/status
func (h *MarketHandler) GetMarketStatus(w http.ResponseWriter, r *http.Request) {
	status := scheduler.MarketStatusAt(time.Now(), h.loc)

	resp := map[string]any{
		"open":       status.Open,
		"state":      status.State,
		"checked_at": status.CheckedAt.Format(time.RFC3339),
	}
	if !status.NextOpen.IsZero() {
		resp["next_open"] = status.NextOpen.Format(time.RFC3339)
	}
	if !status.NextClose.IsZero() {
		resp["next_close"] = status.NextClose.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// recommendationResponse is the JSON view of a scoring result.
type recommendationResponse struct {
	Symbol      string `json:"symbol"`
	Action      string `json:"action"`
	Confidence  string `json:"confidence"`
	Score       int    `json:"score"`
	Reason      string `json:"reason"`
	GeneratedAt string `json:"generated_at"`
}

// AnalyzeSymbol scores one symbol on demand.
// GET /api/analyze/{symbol}
func (h *MarketHandler) AnalyzeSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol path parameter required")
		return
	}

	rec, err := h.analyzer.Analyze(r.Context(), symbol)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSymbol):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNoData):
			writeError(w, http.StatusNotFound, "no market data for symbol")
		default:
			h.logger.ErrorContext(r.Context(), "handler: analyze failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to analyze symbol")
		}
		return
	}

	writeJSON(w, http.StatusOK, recommendationResponse{
		Symbol:      rec.Symbol,
		Action:      string(rec.Action),
		Confidence:  string(rec.Confidence),
		Score:       rec.Score,
		Reason:      rec.Reason,
		GeneratedAt: rec.GeneratedAt.Format(time.RFC3339),
	})
}
