package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// WatchlistService defines the methods that the watchlist handler requires.
type WatchlistService interface {
	Add(ctx context.Context, symbol string) (domain.WatchlistEntry, error)
	Remove(ctx context.Context, symbol string) error
	List(ctx context.Context) ([]domain.WatchlistEntry, error)
}

// WatchlistHandler serves watchlist HTTP endpoints.
type WatchlistHandler struct {
	watchlist WatchlistService
	logger    *slog.Logger
}

// NewWatchlistHandler creates a WatchlistHandler with the given service and logger.
func NewWatchlistHandler(watchlist WatchlistService, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{
		watchlist: watchlist,
		logger:    logger,
	}
}

// watchlistEntryResponse is the JSON view of a single watchlist entry.
type watchlistEntryResponse struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	AddedAt   string  `json:"added_at"`
}

// listWatchlistResponse wraps the watchlist listing.
type listWatchlistResponse struct {
	Symbols []watchlistEntryResponse `json:"symbols"`
}

// ListWatchlist returns all monitored symbols with their last seen prices.
// GET /api/watchlist
func (h *WatchlistHandler) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.watchlist.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list watchlist failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list watchlist")
		return
	}

	resp := listWatchlistResponse{Symbols: make([]watchlistEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Symbols = append(resp.Symbols, watchlistEntryResponse{
			Symbol:    e.Symbol,
			LastPrice: e.LastPrice,
			AddedAt:   e.AddedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// addSymbolRequest is the body for adding a symbol to the watchlist.
type addSymbolRequest struct {
	Symbol string `json:"symbol"`
}

// AddSymbol adds a symbol to the watchlist. The symbol is normalized to the
// exchange-suffixed form (e.g. "bhp" becomes "BHP.AX") before storage.
// POST /api/watchlist
func (h *WatchlistHandler) AddSymbol(w http.ResponseWriter, r *http.Request) {
	var req addSymbolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	entry, err := h.watchlist.Add(r.Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSymbol) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: add symbol failed",
			slog.String("symbol", req.Symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to add symbol")
		return
	}

	writeJSON(w, http.StatusCreated, watchlistEntryResponse{
		Symbol:    entry.Symbol,
		LastPrice: entry.LastPrice,
		AddedAt:   entry.AddedAt.Format(time.RFC3339),
	})
}

// RemoveSymbol removes a symbol from the watchlist.
// DELETE /api/watchlist/{symbol}
func (h *WatchlistHandler) RemoveSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol path parameter required")
		return
	}

	if err := h.watchlist.Remove(r.Context(), symbol); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "symbol not on watchlist")
			return
		}
		if errors.Is(err, domain.ErrInvalidSymbol) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: remove symbol failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to remove symbol")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "removed",
		"symbol": symbol,
	})
}
