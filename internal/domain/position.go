package domain

import "time"

// PositionType identifies the direction of an open position. The bot only
// holds shorts; the field keeps the stored row self-describing.
type PositionType string

const PositionTypeShort PositionType = "short"

// Position is the current open short. The bot holds at most one position at a
// time: the position table is a singleton and the absence of a row means the
// account is flat.
type Position struct {
	Symbol     string
	EntryPrice float64
	Quantity   int64
	// PositionSize is the dollar amount the position was sized from,
	// before rounding down to whole shares.
	PositionSize float64
	EntryTime    time.Time
	Type         PositionType
	// OrderID is the brokerage order that opened the position; empty for
	// simulated fills.
	OrderID string
	// RealTrade records whether a brokerage order was submitted at open, so
	// the close side knows to cover through the brokerage too.
	RealTrade bool
}

// UnrealizedPnL returns the short's profit at the given price.
func (p Position) UnrealizedPnL(price float64) float64 {
	return (p.EntryPrice - price) * float64(p.Quantity)
}

// TakeProfitTarget is the price at or below which the short exits in profit.
func (p Position) TakeProfitTarget(takeProfitPct float64) float64 {
	return p.EntryPrice * (1 - takeProfitPct/100)
}

// StopLossTarget is the price at or above which the short exits at a loss.
func (p Position) StopLossTarget(stopLossPct float64) float64 {
	return p.EntryPrice * (1 + stopLossPct/100)
}
