package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// Scorer rates bar history for shortability. Satisfied by the scoring
// package's Scorer.
type Scorer interface {
	Score(symbol string, bars []domain.Bar) domain.Recommendation
}

// QuoteService refreshes stored watchlist prices and runs on-demand symbol
// analysis.
type QuoteService struct {
	watchlist domain.WatchlistStore
	market    domain.MarketData
	scorer    Scorer
	bus       domain.SignalBus
	logger    *slog.Logger
}

// NewQuoteService creates a QuoteService. Bus may be nil when no event
// stream is wired.
func NewQuoteService(
	watchlist domain.WatchlistStore,
	market domain.MarketData,
	scorer Scorer,
	bus domain.SignalBus,
	logger *slog.Logger,
) *QuoteService {
	return &QuoteService{
		watchlist: watchlist,
		market:    market,
		scorer:    scorer,
		bus:       bus,
		logger:    logger.With(slog.String("component", "quote_service")),
	}
}

// RefreshAll updates the stored last price of every watchlist symbol. Each
// symbol is best-effort: a quote or store failure is logged and the pass
// moves on. It returns how many symbols were updated.
func (s *QuoteService) RefreshAll(ctx context.Context) (int, error) {
	entries, err := s.watchlist.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("quote_service: list watchlist: %w", err)
	}

	updated := 0
	for _, entry := range entries {
		quote, err := s.market.Latest(ctx, entry.Symbol)
		if err != nil {
			s.logger.WarnContext(ctx, "refresh quote failed",
				slog.String("symbol", entry.Symbol),
				slog.String("error", err.Error()))
			continue
		}
		if err := s.watchlist.UpdatePrice(ctx, entry.Symbol, quote.Last); err != nil {
			s.logger.WarnContext(ctx, "refresh price store failed",
				slog.String("symbol", entry.Symbol),
				slog.String("error", err.Error()))
			continue
		}
		updated++
		s.publishQuote(ctx, quote)
	}

	s.logger.DebugContext(ctx, "refresh pass complete",
		slog.Int("watchlist", len(entries)),
		slog.Int("updated", updated))

	return updated, nil
}

// Analyze scores a single symbol from three months of daily bars.
func (s *QuoteService) Analyze(ctx context.Context, symbol string) (domain.Recommendation, error) {
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return domain.Recommendation{}, err
	}

	bars, err := s.market.History(ctx, normalized, domain.PeriodThreeMonths, domain.IntervalDay)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("quote_service: analyze %s: %w", normalized, err)
	}

	return s.scorer.Score(normalized, bars), nil
}

// publishQuote pushes a refreshed quote onto the event bus for dashboards.
func (s *QuoteService) publishQuote(ctx context.Context, quote domain.Quote) {
	if s.bus == nil {
		return
	}
	evt, err := json.Marshal(map[string]any{
		"type":   "quote",
		"symbol": quote.Symbol,
		"last":   quote.Last,
		"ts":     quote.Timestamp,
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, "quotes", evt); err != nil {
		s.logger.WarnContext(ctx, "quote publish failed",
			slog.String("symbol", quote.Symbol),
			slog.String("error", err.Error()))
	}
}
