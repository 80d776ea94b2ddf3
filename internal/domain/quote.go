package domain

import "time"

// Quote is the latest traded snapshot for a symbol.
type Quote struct {
	Symbol    string
	Last      float64
	Open      float64
	High      float64
	Low       float64
	Volume    int64
	Timestamp time.Time
}

// Bar is a single OHLCV bar. Series are always ordered oldest first.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}
