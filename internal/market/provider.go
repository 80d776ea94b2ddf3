package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// rateKey is the shared rate-limit bucket for all Yahoo requests.
const rateKey = "yahoo"

// ProviderConfig holds tuning parameters for the caching provider.
type ProviderConfig struct {
	// RateLimit and RateWindow bound outbound requests to the data source.
	RateLimit  int
	RateWindow time.Duration
	// HistoryTTL is how long fetched history is memoised in-process.
	HistoryTTL time.Duration
}

// histEntry is one memoised history response.
type histEntry struct {
	bars      []domain.Bar
	fetchedAt time.Time
}

// CachingProvider implements domain.MarketData on top of an inner provider,
// adding a Redis quote cache, an in-process history memo, and a distributed
// rate limit on outbound requests.
type CachingProvider struct {
	inner   domain.MarketData
	quotes  domain.QuoteCache
	limiter domain.RateLimiter
	cfg     ProviderConfig
	logger  *slog.Logger

	histMu  sync.Mutex
	history map[string]histEntry
}

// NewCachingProvider wraps inner with caching and rate limiting.
func NewCachingProvider(
	inner domain.MarketData,
	quotes domain.QuoteCache,
	limiter domain.RateLimiter,
	cfg ProviderConfig,
	logger *slog.Logger,
) *CachingProvider {
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = time.Minute
	}
	return &CachingProvider{
		inner:   inner,
		quotes:  quotes,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "market")),
		history: make(map[string]histEntry),
	}
}

var _ domain.MarketData = (*CachingProvider)(nil)

// Latest returns the most recent quote for a symbol, serving from the quote
// cache when fresh and hitting the upstream provider otherwise.
func (p *CachingProvider) Latest(ctx context.Context, symbol string) (domain.Quote, error) {
	if q, err := p.quotes.GetQuote(ctx, symbol); err == nil {
		return q, nil
	}

	if err := p.allow(ctx); err != nil {
		return domain.Quote{}, fmt.Errorf("market: latest %s: %w", symbol, err)
	}

	q, err := p.inner.Latest(ctx, symbol)
	if err != nil {
		return domain.Quote{}, err
	}

	if err := p.quotes.SetQuote(ctx, q); err != nil {
		p.logger.WarnContext(ctx, "quote cache write failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
	}

	return q, nil
}

// History returns OHLCV bars, memoising responses in-process so a scoring
// pass over the watchlist does not refetch the same series.
func (p *CachingProvider) History(ctx context.Context, symbol string, period domain.Period, interval domain.Interval) ([]domain.Bar, error) {
	key := symbol + "|" + string(period) + "|" + string(interval)

	p.histMu.Lock()
	if e, ok := p.history[key]; ok && time.Since(e.fetchedAt) < p.cfg.HistoryTTL {
		bars := e.bars
		p.histMu.Unlock()
		return bars, nil
	}
	p.histMu.Unlock()

	if err := p.allow(ctx); err != nil {
		return nil, fmt.Errorf("market: history %s: %w", symbol, err)
	}

	bars, err := p.inner.History(ctx, symbol, period, interval)
	if err != nil {
		return nil, err
	}

	p.histMu.Lock()
	p.history[key] = histEntry{bars: bars, fetchedAt: time.Now()}
	p.histMu.Unlock()

	return bars, nil
}

// allow consumes one rate-limit token, translating exhaustion into
// domain.ErrRateLimited.
func (p *CachingProvider) allow(ctx context.Context) error {
	ok, err := p.limiter.Allow(ctx, rateKey, p.cfg.RateLimit, p.cfg.RateWindow)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}
