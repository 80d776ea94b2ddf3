package domain

import "time"

// WatchlistEntry is a monitored ASX symbol. LastPrice is a convenience copy
// of the most recent refresh; quotes used for trading decisions always come
// from the market data layer.
type WatchlistEntry struct {
	Symbol    string
	LastPrice float64
	AddedAt   time.Time
}
