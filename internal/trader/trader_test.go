package trader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// fakePositions is an in-memory PositionStore.
type fakePositions struct {
	pos    domain.Position
	open   bool
	getErr error
}

func (f *fakePositions) Get(ctx context.Context) (domain.Position, error) {
	if f.getErr != nil {
		return domain.Position{}, f.getErr
	}
	if !f.open {
		return domain.Position{}, domain.ErrNotFound
	}
	return f.pos, nil
}

func (f *fakePositions) Set(ctx context.Context, pos domain.Position) error {
	f.pos = pos
	f.open = true
	return nil
}

func (f *fakePositions) Clear(ctx context.Context) error {
	f.pos = domain.Position{}
	f.open = false
	return nil
}

// fakeTransactions records appended rows.
type fakeTransactions struct {
	rows []domain.Transaction
}

func (f *fakeTransactions) Append(ctx context.Context, tx domain.Transaction) error {
	f.rows = append(f.rows, tx)
	return nil
}

func (f *fakeTransactions) List(ctx context.Context, opts domain.ListOpts) ([]domain.Transaction, error) {
	return f.rows, nil
}

func (f *fakeTransactions) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error) {
	return nil, nil
}

func (f *fakeTransactions) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeTransactions) Count(ctx context.Context) (int64, error) {
	return int64(len(f.rows)), nil
}

func (f *fakeTransactions) Clear(ctx context.Context) error {
	f.rows = nil
	return nil
}

// fakeSettings holds settings in memory.
type fakeSettings struct {
	s domain.AccountSettings
}

func (f *fakeSettings) Get(ctx context.Context) (domain.AccountSettings, error) { return f.s, nil }

func (f *fakeSettings) Update(ctx context.Context, s domain.AccountSettings) error {
	f.s = s
	return nil
}

func (f *fakeSettings) Reset(ctx context.Context) (domain.AccountSettings, error) {
	f.s = domain.DefaultSettings()
	return f.s, nil
}

// fakeMarket serves canned quotes per symbol.
type fakeMarket struct {
	quotes map[string]float64
}

func (f *fakeMarket) Latest(ctx context.Context, symbol string) (domain.Quote, error) {
	last, ok := f.quotes[symbol]
	if !ok {
		return domain.Quote{}, domain.ErrNoData
	}
	return domain.Quote{Symbol: symbol, Last: last, Timestamp: time.Now()}, nil
}

func (f *fakeMarket) History(ctx context.Context, symbol string, period domain.Period, interval domain.Interval) ([]domain.Bar, error) {
	return nil, domain.ErrNoData
}

// fakeBroker scripts brokerage behaviour per test.
type fakeBroker struct {
	shortable    bool
	shortableErr error
	sellOrder    domain.Order
	sellErr      error
	coverOrder   domain.Order
	coverErr     error
	sells        int
	covers       int
}

func (f *fakeBroker) Shortable(ctx context.Context, symbol string) (bool, error) {
	return f.shortable, f.shortableErr
}

func (f *fakeBroker) SubmitShortSale(ctx context.Context, symbol string, qty int64) (domain.Order, error) {
	f.sells++
	return f.sellOrder, f.sellErr
}

func (f *fakeBroker) SubmitBuyToCover(ctx context.Context, symbol string, qty int64) (domain.Order, error) {
	f.covers++
	return f.coverOrder, f.coverErr
}

func (f *fakeBroker) AwaitFill(ctx context.Context, orderID string, timeout time.Duration) (domain.Order, error) {
	return domain.Order{}, errors.New("not filled")
}

func (f *fakeBroker) Account(ctx context.Context) (domain.BrokerAccount, error) {
	return domain.BrokerAccount{}, nil
}

func newTestTrader(positions *fakePositions, txs *fakeTransactions, settings *fakeSettings, market *fakeMarket, broker domain.Brokerage) *Trader {
	return New(Deps{
		Positions:    positions,
		Transactions: txs,
		Settings:     settings,
		Market:       market,
		Broker:       broker,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestOpenShortSimulated(t *testing.T) {
	positions := &fakePositions{}
	txs := &fakeTransactions{}
	settings := &fakeSettings{s: domain.DefaultSettings()}
	market := &fakeMarket{quotes: map[string]float64{"BHP.AX": 50.0}}

	tr := newTestTrader(positions, txs, settings, market, nil)

	pos, tx, err := tr.OpenShort(context.Background(), "BHP.AX")
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}

	// 10% of 10,000 = 1,000 sized at 50 = 20 shares.
	if pos.Quantity != 20 {
		t.Errorf("quantity = %d, want 20", pos.Quantity)
	}
	if pos.EntryPrice != 50.0 {
		t.Errorf("entry price = %v, want 50", pos.EntryPrice)
	}
	if pos.PositionSize != 1000.0 {
		t.Errorf("position size = %v, want 1000", pos.PositionSize)
	}
	if pos.RealTrade {
		t.Error("simulated open marked real")
	}
	if pos.OrderID != "" {
		t.Errorf("order id = %q, want empty", pos.OrderID)
	}

	if !positions.open {
		t.Error("position not persisted")
	}
	if tx.Action != domain.ActionShortOpen {
		t.Errorf("action = %q, want %q", tx.Action, domain.ActionShortOpen)
	}
	if !strings.HasSuffix(tx.Reason, " (SIM)") {
		t.Errorf("reason = %q, want (SIM) suffix", tx.Reason)
	}
	if len(txs.rows) != 1 {
		t.Fatalf("transactions recorded = %d, want 1", len(txs.rows))
	}
}

func TestOpenShortRejectsSecondPosition(t *testing.T) {
	positions := &fakePositions{open: true, pos: domain.Position{Symbol: "CBA.AX"}}
	tr := newTestTrader(positions, &fakeTransactions{}, &fakeSettings{s: domain.DefaultSettings()},
		&fakeMarket{quotes: map[string]float64{"BHP.AX": 50}}, nil)

	_, _, err := tr.OpenShort(context.Background(), "BHP.AX")
	if !errors.Is(err, domain.ErrPositionOpen) {
		t.Fatalf("err = %v, want ErrPositionOpen", err)
	}
}

func TestOpenShortZeroQuantity(t *testing.T) {
	// Price above the sized dollar amount rounds down to zero shares.
	positions := &fakePositions{}
	market := &fakeMarket{quotes: map[string]float64{"BHP.AX": 2000.0}}
	tr := newTestTrader(positions, &fakeTransactions{}, &fakeSettings{s: domain.DefaultSettings()}, market, nil)

	_, _, err := tr.OpenShort(context.Background(), "BHP.AX")
	if !errors.Is(err, domain.ErrInvalidSize) {
		t.Fatalf("err = %v, want ErrInvalidSize", err)
	}
	if positions.open {
		t.Error("failed open left a position behind")
	}
}

func TestOpenShortNoQuote(t *testing.T) {
	tr := newTestTrader(&fakePositions{}, &fakeTransactions{}, &fakeSettings{s: domain.DefaultSettings()},
		&fakeMarket{quotes: map[string]float64{}}, nil)

	_, _, err := tr.OpenShort(context.Background(), "XYZ.AX")
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestOpenShortRealFill(t *testing.T) {
	positions := &fakePositions{}
	txs := &fakeTransactions{}
	broker := &fakeBroker{
		shortable: true,
		sellOrder: domain.Order{ID: "ord-1", Status: domain.OrderStatusFilled, FilledAvgPrice: 49.8},
	}
	tr := newTestTrader(positions, txs, &fakeSettings{s: domain.DefaultSettings()},
		&fakeMarket{quotes: map[string]float64{"BHP.AX": 50.0}}, broker)

	pos, tx, err := tr.OpenShort(context.Background(), "BHP.AX")
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}
	if !pos.RealTrade || pos.OrderID != "ord-1" {
		t.Errorf("pos = %+v, want real trade via ord-1", pos)
	}
	if pos.EntryPrice != 49.8 {
		t.Errorf("entry price = %v, want brokerage fill 49.8", pos.EntryPrice)
	}
	if !strings.HasSuffix(tx.Reason, " (REAL)") {
		t.Errorf("reason = %q, want (REAL) suffix", tx.Reason)
	}
	if broker.sells != 1 {
		t.Errorf("short sales submitted = %d, want 1", broker.sells)
	}
}

func TestOpenShortBrokerageFailureFallsBack(t *testing.T) {
	broker := &fakeBroker{shortable: true, sellErr: errors.New("alpaca: 503")}
	positions := &fakePositions{}
	tr := newTestTrader(positions, &fakeTransactions{}, &fakeSettings{s: domain.DefaultSettings()},
		&fakeMarket{quotes: map[string]float64{"BHP.AX": 50.0}}, broker)

	pos, tx, err := tr.OpenShort(context.Background(), "BHP.AX")
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}
	if pos.RealTrade {
		t.Error("failed brokerage order marked real")
	}
	if pos.EntryPrice != 50.0 {
		t.Errorf("entry price = %v, want quoted 50", pos.EntryPrice)
	}
	if !strings.HasSuffix(tx.Reason, " (SIM)") {
		t.Errorf("reason = %q, want (SIM) suffix", tx.Reason)
	}
}

func TestOpenShortNotShortableSimulates(t *testing.T) {
	broker := &fakeBroker{shortable: false}
	tr := newTestTrader(&fakePositions{}, &fakeTransactions{}, &fakeSettings{s: domain.DefaultSettings()},
		&fakeMarket{quotes: map[string]float64{"BHP.AX": 50.0}}, broker)

	pos, _, err := tr.OpenShort(context.Background(), "BHP.AX")
	if err != nil {
		t.Fatalf("OpenShort: %v", err)
	}
	if pos.RealTrade {
		t.Error("non-shortable symbol marked real")
	}
	if broker.sells != 0 {
		t.Errorf("short sales submitted = %d, want 0", broker.sells)
	}
}

func TestCloseShortProfit(t *testing.T) {
	positions := &fakePositions{open: true, pos: domain.Position{
		Symbol:     "BHP.AX",
		EntryPrice: 50.0,
		Quantity:   20,
		EntryTime:  time.Now().Add(-time.Hour),
		Type:       domain.PositionTypeShort,
	}}
	txs := &fakeTransactions{}
	settings := &fakeSettings{s: domain.DefaultSettings()}
	tr := newTestTrader(positions, txs, settings,
		&fakeMarket{quotes: map[string]float64{"BHP.AX": 45.0}}, nil)

	tx, err := tr.CloseShort(context.Background(), domain.ReasonTakeProfit, 0)
	if err != nil {
		t.Fatalf("CloseShort: %v", err)
	}

	// Short covered 5 below entry over 20 shares.
	if tx.PnL != 100.0 {
		t.Errorf("pnl = %v, want 100", tx.PnL)
	}
	if settings.s.CurrentBalance != 10100.0 {
		t.Errorf("balance = %v, want 10100", settings.s.CurrentBalance)
	}
	if positions.open {
		t.Error("position not cleared after close")
	}
	if tx.Action != domain.ActionShortClose {
		t.Errorf("action = %q, want %q", tx.Action, domain.ActionShortClose)
	}
	if tx.Reason != domain.ReasonTakeProfit+" (SIM)" {
		t.Errorf("reason = %q, want %q", tx.Reason, domain.ReasonTakeProfit+" (SIM)")
	}
}

func TestCloseShortUsesSuppliedPrice(t *testing.T) {
	positions := &fakePositions{open: true, pos: domain.Position{
		Symbol: "BHP.AX", EntryPrice: 50.0, Quantity: 20, Type: domain.PositionTypeShort,
	}}
	// No quote available: the supplied price must carry the close.
	tr := newTestTrader(positions, &fakeTransactions{}, &fakeSettings{s: domain.DefaultSettings()},
		&fakeMarket{quotes: map[string]float64{}}, nil)

	tx, err := tr.CloseShort(context.Background(), domain.ReasonStopLoss, 51.0)
	if err != nil {
		t.Fatalf("CloseShort: %v", err)
	}
	if tx.Price != 51.0 {
		t.Errorf("price = %v, want supplied 51", tx.Price)
	}
	if tx.PnL != -20.0 {
		t.Errorf("pnl = %v, want -20", tx.PnL)
	}
}

func TestCloseShortNoPosition(t *testing.T) {
	tr := newTestTrader(&fakePositions{}, &fakeTransactions{}, &fakeSettings{s: domain.DefaultSettings()},
		&fakeMarket{}, nil)

	_, err := tr.CloseShort(context.Background(), domain.ReasonManualShutdown, 0)
	if !errors.Is(err, domain.ErrNoPosition) {
		t.Fatalf("err = %v, want ErrNoPosition", err)
	}
}

func TestCloseShortRealCover(t *testing.T) {
	positions := &fakePositions{open: true, pos: domain.Position{
		Symbol: "BHP.AX", EntryPrice: 50.0, Quantity: 20,
		Type: domain.PositionTypeShort, OrderID: "ord-1", RealTrade: true,
	}}
	broker := &fakeBroker{
		coverOrder: domain.Order{ID: "ord-2", Status: domain.OrderStatusFilled, FilledAvgPrice: 48.5},
	}
	settings := &fakeSettings{s: domain.DefaultSettings()}
	tr := newTestTrader(positions, &fakeTransactions{}, settings,
		&fakeMarket{quotes: map[string]float64{"BHP.AX": 48.0}}, broker)

	tx, err := tr.CloseShort(context.Background(), domain.ReasonCycleRotation, 48.0)
	if err != nil {
		t.Fatalf("CloseShort: %v", err)
	}
	if broker.covers != 1 {
		t.Errorf("covers submitted = %d, want 1", broker.covers)
	}
	if tx.Price != 48.5 {
		t.Errorf("price = %v, want brokerage fill 48.5", tx.Price)
	}
	if !strings.HasSuffix(tx.Reason, " (REAL)") {
		t.Errorf("reason = %q, want (REAL) suffix", tx.Reason)
	}
	if settings.s.CurrentBalance != 10030.0 {
		t.Errorf("balance = %v, want 10030", settings.s.CurrentBalance)
	}
}

func TestCloseShortBrokerageFailureSimulates(t *testing.T) {
	positions := &fakePositions{open: true, pos: domain.Position{
		Symbol: "BHP.AX", EntryPrice: 50.0, Quantity: 20,
		Type: domain.PositionTypeShort, OrderID: "ord-1", RealTrade: true,
	}}
	broker := &fakeBroker{coverErr: errors.New("alpaca: timeout")}
	tr := newTestTrader(positions, &fakeTransactions{}, &fakeSettings{s: domain.DefaultSettings()},
		&fakeMarket{quotes: map[string]float64{"BHP.AX": 47.0}}, broker)

	tx, err := tr.CloseShort(context.Background(), domain.ReasonMarketClosed, 0)
	if err != nil {
		t.Fatalf("CloseShort: %v", err)
	}
	if tx.Price != 47.0 {
		t.Errorf("price = %v, want quoted 47", tx.Price)
	}
	if !strings.HasSuffix(tx.Reason, " (SIM)") {
		t.Errorf("reason = %q, want (SIM) suffix", tx.Reason)
	}
	if positions.open {
		t.Error("position not cleared after close")
	}
}

func TestOpenCloseRoundTrip(t *testing.T) {
	positions := &fakePositions{}
	txs := &fakeTransactions{}
	settings := &fakeSettings{s: domain.DefaultSettings()}
	market := &fakeMarket{quotes: map[string]float64{"BHP.AX": 50.0}}
	tr := newTestTrader(positions, txs, settings, market, nil)

	if _, _, err := tr.OpenShort(context.Background(), "BHP.AX"); err != nil {
		t.Fatalf("OpenShort: %v", err)
	}

	market.quotes["BHP.AX"] = 49.0
	if _, err := tr.CloseShort(context.Background(), domain.ReasonTakeProfit, 0); err != nil {
		t.Fatalf("CloseShort: %v", err)
	}

	if positions.open {
		t.Error("position still open after round trip")
	}
	if len(txs.rows) != 2 {
		t.Fatalf("transactions = %d, want 2", len(txs.rows))
	}
	if settings.s.CurrentBalance != 10020.0 {
		t.Errorf("balance = %v, want 10020", settings.s.CurrentBalance)
	}

	// A second open must succeed now the account is flat again.
	if _, _, err := tr.OpenShort(context.Background(), "BHP.AX"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
}
