// Package broker adapts the Alpaca trading API to the domain Brokerage
// interface.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// fillPollInterval is how often AwaitFill re-reads a pending order.
const fillPollInterval = 2 * time.Second

// AlpacaConfig holds construction parameters for the Alpaca brokerage.
type AlpacaConfig struct {
	ApiKey    string
	ApiSecret string
	// BaseURL selects paper or live trading.
	BaseURL string
}

// Alpaca implements domain.Brokerage using the Alpaca trading API.
type Alpaca struct {
	client *alpaca.Client
	logger *slog.Logger
}

// NewAlpaca creates an Alpaca brokerage adapter.
func NewAlpaca(cfg AlpacaConfig, logger *slog.Logger) *Alpaca {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.ApiKey,
		APISecret: cfg.ApiSecret,
		BaseURL:   cfg.BaseURL,
	})
	return &Alpaca{
		client: client,
		logger: logger.With(slog.String("component", "broker")),
	}
}

var _ domain.Brokerage = (*Alpaca)(nil)

// brokerSymbol strips the ASX exchange suffix: watchlist symbols are stored
// bare, Yahoo wants "BHP.AX", Alpaca wants "BHP".
func brokerSymbol(symbol string) string {
	return strings.TrimSuffix(symbol, ".AX")
}

// Shortable reports whether the asset is tradable and marked shortable by
// the brokerage.
func (a *Alpaca) Shortable(ctx context.Context, symbol string) (bool, error) {
	asset, err := a.client.GetAsset(brokerSymbol(symbol))
	if err != nil {
		return false, fmt.Errorf("broker: get asset %s: %w", symbol, err)
	}
	return asset.Tradable && asset.Shortable, nil
}

// SubmitShortSale places a market day sell order opening a short.
func (a *Alpaca) SubmitShortSale(ctx context.Context, symbol string, qty int64) (domain.Order, error) {
	return a.placeOrder(ctx, symbol, qty, alpaca.Sell)
}

// SubmitBuyToCover places a market day buy order closing a short.
func (a *Alpaca) SubmitBuyToCover(ctx context.Context, symbol string, qty int64) (domain.Order, error) {
	return a.placeOrder(ctx, symbol, qty, alpaca.Buy)
}

func (a *Alpaca) placeOrder(ctx context.Context, symbol string, qty int64, side alpaca.Side) (domain.Order, error) {
	q := decimal.NewFromInt(qty)
	order, err := a.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      brokerSymbol(symbol),
		Qty:         &q,
		Side:        side,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("broker: place %s order %s: %w", side, symbol, err)
	}

	a.logger.InfoContext(ctx, "order submitted",
		slog.String("order_id", order.ID),
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.Int64("qty", qty),
		slog.String("status", string(order.Status)))

	return toDomainOrder(order), nil
}

// AwaitFill polls the order every two seconds until it reaches a terminal
// status or the timeout elapses. It returns the last observed order either
// way; a timed-out order comes back still pending with a nil error.
func (a *Alpaca) AwaitFill(ctx context.Context, orderID string, timeout time.Duration) (domain.Order, error) {
	deadline := time.Now().Add(timeout)

	var last domain.Order
	for {
		order, err := a.client.GetOrder(orderID)
		if err != nil {
			return last, fmt.Errorf("broker: get order %s: %w", orderID, err)
		}
		last = toDomainOrder(order)

		if last.Status.Terminal() {
			return last, nil
		}
		if time.Now().After(deadline) {
			a.logger.WarnContext(ctx, "order fill wait timed out",
				slog.String("order_id", orderID),
				slog.String("status", string(last.Status)))
			return last, nil
		}

		timer := time.NewTimer(fillPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		case <-timer.C:
		}
	}
}

// Account returns current brokerage account state.
func (a *Alpaca) Account(ctx context.Context) (domain.BrokerAccount, error) {
	acct, err := a.client.GetAccount()
	if err != nil {
		return domain.BrokerAccount{}, fmt.Errorf("broker: get account: %w", err)
	}

	buyingPower, _ := acct.BuyingPower.Float64()
	equity, _ := acct.Equity.Float64()

	return domain.BrokerAccount{
		ID:          acct.ID,
		Currency:    acct.Currency,
		BuyingPower: buyingPower,
		Equity:      equity,
	}, nil
}

// toDomainOrder converts an Alpaca order into the domain representation.
func toDomainOrder(o *alpaca.Order) domain.Order {
	out := domain.Order{
		ID:          o.ID,
		Symbol:      o.Symbol,
		Side:        domain.OrderSide(o.Side),
		Status:      domain.OrderStatus(o.Status),
		SubmittedAt: o.SubmittedAt,
	}
	if o.Qty != nil {
		out.Quantity = o.Qty.IntPart()
	}
	if o.FilledAvgPrice != nil {
		out.FilledAvgPrice, _ = o.FilledAvgPrice.Float64()
	}
	return out
}
