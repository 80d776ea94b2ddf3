package domain

import (
	"context"
	"time"
)

// Brokerage is the order-routing surface the trader depends on. A nil
// Brokerage means the bot runs fully simulated: every fill happens at the
// quoted price with no external calls.
type Brokerage interface {
	// Shortable reports whether the symbol can be sold short.
	Shortable(ctx context.Context, symbol string) (bool, error)

	// SubmitShortSale places a market sell order opening a short.
	SubmitShortSale(ctx context.Context, symbol string, qty int64) (Order, error)

	// SubmitBuyToCover places a market buy order closing a short.
	SubmitBuyToCover(ctx context.Context, symbol string, qty int64) (Order, error)

	// AwaitFill polls the order until it reaches a terminal status or the
	// timeout elapses. It returns the last observed order either way; the
	// caller decides what a non-filled outcome means.
	AwaitFill(ctx context.Context, orderID string, timeout time.Duration) (Order, error)

	// Account returns current brokerage account state.
	Account(ctx context.Context) (BrokerAccount, error)
}
