package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus mirrors the brokerage order lifecycle. Only the statuses the
// bot inspects are named; anything else is treated as terminal-unfilled.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusPendingNew OrderStatus = "pending_new"
	OrderStatusFilled     OrderStatus = "filled"
	OrderStatusCanceled   OrderStatus = "canceled"
	OrderStatusRejected   OrderStatus = "rejected"
	OrderStatusExpired    OrderStatus = "expired"
)

// Pending reports whether the order is still working at the brokerage.
func (s OrderStatus) Pending() bool {
	switch s {
	case OrderStatusNew, OrderStatusAccepted, OrderStatusPendingNew:
		return true
	}
	return false
}

// Terminal reports whether the order has reached a final state.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// Order is the brokerage's view of a submitted order.
type Order struct {
	ID             string
	Symbol         string
	Side           OrderSide
	Quantity       int64
	Status         OrderStatus
	FilledAvgPrice float64 // zero until filled
	SubmittedAt    time.Time
}

// BrokerAccount is the subset of brokerage account state exposed on the API.
type BrokerAccount struct {
	ID          string
	Currency    string
	BuyingPower float64
	Equity      float64
}
