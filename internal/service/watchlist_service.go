package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// asxSuffix is the exchange suffix carried by every stored watchlist symbol.
const asxSuffix = ".AX"

// symbolPattern matches a bare ASX code: 1-6 letters or digits.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,6}$`)

// WatchlistService manages the set of monitored symbols.
type WatchlistService struct {
	watchlist domain.WatchlistStore
	market    domain.MarketData
	logger    *slog.Logger
}

// NewWatchlistService creates a WatchlistService.
func NewWatchlistService(watchlist domain.WatchlistStore, market domain.MarketData, logger *slog.Logger) *WatchlistService {
	return &WatchlistService{
		watchlist: watchlist,
		market:    market,
		logger:    logger.With(slog.String("component", "watchlist_service")),
	}
}

// NormalizeSymbol upper-cases a user-supplied symbol and ensures the .AX
// exchange suffix. It returns an error for anything that is not a plausible
// ASX code.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimSuffix(s, asxSuffix)
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("watchlist_service: %w: %q", domain.ErrInvalidSymbol, symbol)
	}
	return s + asxSuffix, nil
}

// Add normalizes and stores a symbol. The initial price is seeded from a
// live quote when one is available; a quote failure still adds the symbol
// with a zero price, to be filled by the next refresh.
func (s *WatchlistService) Add(ctx context.Context, symbol string) (domain.WatchlistEntry, error) {
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return domain.WatchlistEntry{}, err
	}

	entry := domain.WatchlistEntry{
		Symbol:  normalized,
		AddedAt: time.Now().UTC(),
	}

	if quote, err := s.market.Latest(ctx, normalized); err != nil {
		s.logger.WarnContext(ctx, "initial quote unavailable, adding without price",
			slog.String("symbol", normalized),
			slog.String("error", err.Error()))
	} else {
		entry.LastPrice = quote.Last
	}

	if err := s.watchlist.Add(ctx, entry); err != nil {
		return domain.WatchlistEntry{}, fmt.Errorf("watchlist_service: add %s: %w", normalized, err)
	}

	s.logger.InfoContext(ctx, "symbol added",
		slog.String("symbol", normalized),
		slog.Float64("price", entry.LastPrice))

	return entry, nil
}

// Remove deletes a symbol from the watchlist.
func (s *WatchlistService) Remove(ctx context.Context, symbol string) error {
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	if err := s.watchlist.Remove(ctx, normalized); err != nil {
		return fmt.Errorf("watchlist_service: remove %s: %w", normalized, err)
	}
	s.logger.InfoContext(ctx, "symbol removed", slog.String("symbol", normalized))
	return nil
}

// List returns all watchlist entries.
func (s *WatchlistService) List(ctx context.Context) ([]domain.WatchlistEntry, error) {
	entries, err := s.watchlist.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("watchlist_service: list: %w", err)
	}
	return entries, nil
}
