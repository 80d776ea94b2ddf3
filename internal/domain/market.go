package domain

import (
	"context"
	"time"
)

// Period selects how much history to fetch.
type Period string

const (
	PeriodDay         Period = "1d"
	PeriodMonth       Period = "1mo"
	PeriodThreeMonths Period = "3mo"
)

// Interval selects the bar width of fetched history.
type Interval string

const (
	IntervalMinute Interval = "1m"
	IntervalDay    Interval = "1d"
)

// MarketData supplies quotes and OHLCV history for ASX symbols. Latest and
// History return ErrNoData (possibly wrapped) when the provider has nothing
// usable for the symbol.
type MarketData interface {
	Latest(ctx context.Context, symbol string) (Quote, error)
	History(ctx context.Context, symbol string, period Period, interval Interval) ([]Bar, error)
}

// MarketStatus describes whether the exchange is currently trading.
type MarketStatus struct {
	Open      bool
	State     string // "open", "closed - weekend", "closed - outside trading hours"
	NextOpen  time.Time
	NextClose time.Time
	CheckedAt time.Time
}
