// Package trader opens and closes short positions, keeping the position
// store, simulated balance, and brokerage in sync.
package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// fillTimeout is how long an open or close waits for a pending brokerage
// order before falling back to the quoted price.
const fillTimeout = 30 * time.Second

// eventsChannel is the bus channel trade lifecycle events are published on.
const eventsChannel = "events"

// Notifier delivers trade alerts to operator channels. Satisfied by the
// notify package's Notifier.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Trader executes short opens and covers. With a nil Brokerage every fill is
// simulated at the quoted price; with a real one, brokerage failures degrade
// to simulation rather than blocking the trade.
type Trader struct {
	positions    domain.PositionStore
	transactions domain.TransactionStore
	settings     domain.SettingsStore
	market       domain.MarketData
	broker       domain.Brokerage
	bus          domain.SignalBus
	notifier     Notifier
	audit        domain.AuditStore
	logger       *slog.Logger
}

// Deps carries the trader's dependencies. Broker may be nil for a fully
// simulated account; Bus, Notifier, and Audit may be nil when those
// side channels are not wired.
type Deps struct {
	Positions    domain.PositionStore
	Transactions domain.TransactionStore
	Settings     domain.SettingsStore
	Market       domain.MarketData
	Broker       domain.Brokerage
	Bus          domain.SignalBus
	Notifier     Notifier
	Audit        domain.AuditStore
	Logger       *slog.Logger
}

// New creates a Trader.
func New(deps Deps) *Trader {
	return &Trader{
		positions:    deps.Positions,
		transactions: deps.Transactions,
		settings:     deps.Settings,
		market:       deps.Market,
		broker:       deps.Broker,
		bus:          deps.Bus,
		notifier:     deps.Notifier,
		audit:        deps.Audit,
		logger:       deps.Logger.With(slog.String("component", "trader")),
	}
}

// realTag is appended to transaction reasons so history records whether a
// brokerage order backed the fill.
func realTag(real bool) string {
	if real {
		return " (REAL)"
	}
	return " (SIM)"
}

// OpenShort opens a short position in symbol, sized at the configured
// percentage of the current balance and rounded down to whole shares.
//
// A brokerage error never fails the open: the trade degrades to a simulated
// fill at the quoted price. The open only fails when there is already a
// position, the symbol has no usable quote, or the sized quantity rounds to
// zero shares.
func (t *Trader) OpenShort(ctx context.Context, symbol string) (domain.Position, domain.Transaction, error) {
	// 1. One position at a time.
	if _, err := t.positions.Get(ctx); err == nil {
		return domain.Position{}, domain.Transaction{}, domain.ErrPositionOpen
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Position{}, domain.Transaction{}, fmt.Errorf("trader: check position: %w", err)
	}

	// 2. Size from the current balance.
	settings, err := t.settings.Get(ctx)
	if err != nil {
		return domain.Position{}, domain.Transaction{}, fmt.Errorf("trader: load settings: %w", err)
	}
	positionSize := settings.CurrentBalance * settings.PositionSizePct / 100

	// 3. Quote the symbol.
	quote, err := t.market.Latest(ctx, symbol)
	if err != nil {
		return domain.Position{}, domain.Transaction{}, fmt.Errorf("trader: quote %s: %w", symbol, err)
	}
	price := quote.Last
	if price <= 0 {
		return domain.Position{}, domain.Transaction{}, fmt.Errorf("trader: quote %s: %w", symbol, domain.ErrNoData)
	}

	qty := int64(positionSize / price)
	if qty <= 0 {
		return domain.Position{}, domain.Transaction{}, domain.ErrInvalidSize
	}

	// 4. Try the brokerage; fall back to simulation on any failure.
	price, orderID := t.executeOpen(ctx, symbol, qty, price)
	real := orderID != ""

	// 5. Persist the position.
	pos := domain.Position{
		Symbol:       symbol,
		EntryPrice:   price,
		Quantity:     qty,
		PositionSize: positionSize,
		EntryTime:    time.Now().UTC(),
		Type:         domain.PositionTypeShort,
		OrderID:      orderID,
		RealTrade:    real,
	}
	if err := t.positions.Set(ctx, pos); err != nil {
		return domain.Position{}, domain.Transaction{}, fmt.Errorf("trader: save position: %w", err)
	}

	// 6. Record the open in history.
	tx := domain.Transaction{
		ID:        uuid.New().String(),
		Timestamp: pos.EntryTime,
		Symbol:    symbol,
		Action:    domain.ActionShortOpen,
		Price:     price,
		Quantity:  qty,
		PnL:       0,
		Reason:    "New position" + realTag(real),
	}
	if err := t.transactions.Append(ctx, tx); err != nil {
		return domain.Position{}, domain.Transaction{}, fmt.Errorf("trader: record open: %w", err)
	}

	t.logger.InfoContext(ctx, "short opened",
		slog.String("symbol", symbol),
		slog.Float64("entry_price", price),
		slog.Int64("quantity", qty),
		slog.Bool("real", real))

	t.announce(ctx, "position_opened", fmt.Sprintf("Short opened%s", realTag(real)),
		fmt.Sprintf("%s: %d @ %.4f", symbol, qty, price),
		map[string]any{
			"symbol":      symbol,
			"entry_price": price,
			"quantity":    qty,
			"real":        real,
		})

	return pos, tx, nil
}

// executeOpen submits the short sale when a brokerage is configured. It
// returns the execution price and the submitted order ID; an empty order ID
// means the fill is simulated.
func (t *Trader) executeOpen(ctx context.Context, symbol string, qty int64, quoted float64) (price float64, orderID string) {
	price = quoted
	if t.broker == nil {
		return price, ""
	}

	// Non-shortable symbols trade simulated; a failed lookup is treated the
	// same way as any other brokerage failure.
	shortable, err := t.broker.Shortable(ctx, symbol)
	if err != nil {
		t.logger.WarnContext(ctx, "shortable check failed, falling back to simulation",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
		return price, ""
	}
	if !shortable {
		t.logger.WarnContext(ctx, "symbol not shortable at brokerage, simulating",
			slog.String("symbol", symbol))
		return price, ""
	}

	order, err := t.broker.SubmitShortSale(ctx, symbol, qty)
	if err != nil {
		t.logger.ErrorContext(ctx, "real trading error, falling back to simulation",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
		return price, ""
	}

	return t.resolveFillPrice(ctx, order, quoted), order.ID
}

// CloseShort covers the open position. quotedPrice supplies a price the
// caller already has; pass 0 to fetch a fresh quote. The close reason lands
// in the transaction history with a real/simulated tag appended.
func (t *Trader) CloseShort(ctx context.Context, reason string, quotedPrice float64) (domain.Transaction, error) {
	pos, err := t.positions.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Transaction{}, domain.ErrNoPosition
		}
		return domain.Transaction{}, fmt.Errorf("trader: load position: %w", err)
	}

	price := quotedPrice
	real := false

	// Cover through the brokerage when the open went through it.
	if t.broker != nil && pos.RealTrade {
		order, err := t.broker.SubmitBuyToCover(ctx, pos.Symbol, pos.Quantity)
		if err != nil {
			t.logger.ErrorContext(ctx, "real trading error on close, using simulation price",
				slog.String("symbol", pos.Symbol),
				slog.String("error", err.Error()))
		} else {
			real = true
			price = t.resolveFillPrice(ctx, order, price)
		}
	}

	// No brokerage fill price and none supplied: quote the market.
	if price <= 0 {
		quote, err := t.market.Latest(ctx, pos.Symbol)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("trader: quote %s for close: %w", pos.Symbol, err)
		}
		price = quote.Last
		if price <= 0 {
			return domain.Transaction{}, fmt.Errorf("trader: quote %s for close: %w", pos.Symbol, domain.ErrNoData)
		}
	}

	// Short P/L: profit when covering below entry.
	pnl := (pos.EntryPrice - price) * float64(pos.Quantity)

	settings, err := t.settings.Get(ctx)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("trader: load settings: %w", err)
	}
	settings.CurrentBalance += pnl
	if err := t.settings.Update(ctx, settings); err != nil {
		return domain.Transaction{}, fmt.Errorf("trader: update balance: %w", err)
	}

	tx := domain.Transaction{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Symbol:    pos.Symbol,
		Action:    domain.ActionShortClose,
		Price:     price,
		Quantity:  pos.Quantity,
		PnL:       pnl,
		Reason:    reason + realTag(real),
	}
	if err := t.transactions.Append(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("trader: record close: %w", err)
	}

	if err := t.positions.Clear(ctx); err != nil {
		return domain.Transaction{}, fmt.Errorf("trader: clear position: %w", err)
	}

	t.logger.InfoContext(ctx, "short closed",
		slog.String("symbol", pos.Symbol),
		slog.Float64("exit_price", price),
		slog.Float64("pnl", pnl),
		slog.String("reason", reason),
		slog.Bool("real", real))

	t.announce(ctx, "position_closed", fmt.Sprintf("Short closed%s", realTag(real)),
		fmt.Sprintf("%s: %d @ %.4f, P/L %.2f (%s)", pos.Symbol, pos.Quantity, price, pnl, reason),
		map[string]any{
			"symbol":     pos.Symbol,
			"exit_price": price,
			"quantity":   pos.Quantity,
			"pnl":        pnl,
			"reason":     reason,
			"real":       real,
		})

	return tx, nil
}

// announce fans a lifecycle event out to the audit log, the event bus, and
// operator notification channels. All three are best-effort; the trade
// itself is already committed by the time announce runs.
func (t *Trader) announce(ctx context.Context, event, title, message string, detail map[string]any) {
	if t.audit != nil {
		if err := t.audit.Log(ctx, event, detail); err != nil {
			t.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", event),
				slog.String("error", err.Error()))
		}
	}

	if t.bus != nil {
		payload, err := json.Marshal(map[string]any{
			"type":    event,
			"message": message,
			"detail":  detail,
		})
		if err == nil {
			if err := t.bus.Publish(ctx, eventsChannel, payload); err != nil {
				t.logger.WarnContext(ctx, "event publish failed",
					slog.String("event", event),
					slog.String("error", err.Error()))
			}
		}
	}

	if t.notifier != nil {
		if err := t.notifier.Notify(ctx, event, title, message); err != nil {
			t.logger.WarnContext(ctx, "notification failed",
				slog.String("event", event),
				slog.String("error", err.Error()))
		}
	}
}

// resolveFillPrice extracts the execution price from a submitted order,
// waiting out a pending order up to the fill timeout. When no fill price can
// be determined the fallback price is used.
func (t *Trader) resolveFillPrice(ctx context.Context, order domain.Order, fallback float64) float64 {
	if order.Status == domain.OrderStatusFilled && order.FilledAvgPrice > 0 {
		return order.FilledAvgPrice
	}

	if order.Status.Pending() {
		t.logger.InfoContext(ctx, "waiting for order fill",
			slog.String("order_id", order.ID))

		filled, err := t.broker.AwaitFill(ctx, order.ID, fillTimeout)
		if err == nil && filled.Status == domain.OrderStatusFilled && filled.FilledAvgPrice > 0 {
			return filled.FilledAvgPrice
		}
		t.logger.WarnContext(ctx, "order not filled within timeout, using quoted price",
			slog.String("order_id", order.ID))
	}

	return fallback
}
