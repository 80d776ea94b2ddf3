package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes.
// Each symbol's quote is stored as a hash at key "quote:{symbol}" with fields
// "last", "open", "high", "low", "volume", and "ts" (Unix nanosecond
// timestamp). Keys expire after the configured TTL so a stale quote is never
// served as fresh.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(symbol string) string {
	return "quote:" + symbol
}

func quoteFields(q domain.Quote) map[string]interface{} {
	return map[string]interface{}{
		"last":   strconv.FormatFloat(q.Last, 'f', -1, 64),
		"open":   strconv.FormatFloat(q.Open, 'f', -1, 64),
		"high":   strconv.FormatFloat(q.High, 'f', -1, 64),
		"low":    strconv.FormatFloat(q.Low, 'f', -1, 64),
		"volume": strconv.FormatInt(q.Volume, 10),
		"ts":     strconv.FormatInt(q.Timestamp.UnixNano(), 10),
	}
}

func parseQuote(symbol string, vals map[string]string) (domain.Quote, error) {
	q := domain.Quote{Symbol: symbol}

	lastStr, ok := vals["last"]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	last, err := strconv.ParseFloat(lastStr, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse last %s: %w", symbol, err)
	}
	q.Last = last

	// Secondary fields are best-effort: a partial hash still yields a usable
	// last price.
	if v, err := strconv.ParseFloat(vals["open"], 64); err == nil {
		q.Open = v
	}
	if v, err := strconv.ParseFloat(vals["high"], 64); err == nil {
		q.High = v
	}
	if v, err := strconv.ParseFloat(vals["low"], 64); err == nil {
		q.Low = v
	}
	if v, err := strconv.ParseInt(vals["volume"], 10, 64); err == nil {
		q.Volume = v
	}
	if v, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		q.Timestamp = time.Unix(0, v)
	}

	return q, nil
}

// SetQuote stores the latest quote for a symbol and refreshes its TTL.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Symbol)

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, quoteFields(q))
	if qc.ttl > 0 {
		pipe.Expire(ctx, key, qc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.Symbol, err)
	}
	return nil
}

// GetQuote retrieves the cached quote for a symbol.
// It returns domain.ErrNotFound when the key does not exist or has expired.
func (qc *QuoteCache) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(symbol)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}
	return parseQuote(symbol, vals)
}

// GetQuotes retrieves cached quotes for multiple symbols using a pipeline.
// Symbols whose keys do not exist are silently omitted from the result map.
func (qc *QuoteCache) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	if len(symbols) == 0 {
		return map[string]domain.Quote{}, nil
	}

	pipe := qc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(symbols))
	for _, sym := range symbols {
		cmds[sym] = pipe.HGetAll(ctx, quoteKey(sym))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get quotes pipeline: %w", err)
	}

	result := make(map[string]domain.Quote, len(symbols))
	for sym, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		q, err := parseQuote(sym, vals)
		if err != nil {
			continue
		}
		result[sym] = q
	}

	return result, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
