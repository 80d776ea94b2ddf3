package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// tradingTime returns a Tuesday 11:00 Sydney time, inside trading hours.
func tradingTime(loc *time.Location) time.Time {
	return time.Date(2025, 7, 1, 11, 0, 0, 0, loc)
}

// afterHoursTime returns a Tuesday 18:00 Sydney time.
func afterHoursTime(loc *time.Location) time.Time {
	return time.Date(2025, 7, 1, 18, 0, 0, 0, loc)
}

type fakeWatchlist struct {
	entries []domain.WatchlistEntry
}

func (f *fakeWatchlist) Add(ctx context.Context, entry domain.WatchlistEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeWatchlist) Remove(ctx context.Context, symbol string) error { return nil }

func (f *fakeWatchlist) List(ctx context.Context) ([]domain.WatchlistEntry, error) {
	return f.entries, nil
}

func (f *fakeWatchlist) UpdatePrice(ctx context.Context, symbol string, price float64) error {
	return nil
}

type fakePositions struct {
	pos  domain.Position
	open bool
}

func (f *fakePositions) Get(ctx context.Context) (domain.Position, error) {
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
	f.open = false
	return nil
}

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

type fakeMarket struct {
	quotes map[string]float64
	bars   map[string][]domain.Bar
}

func (f *fakeMarket) Latest(ctx context.Context, symbol string) (domain.Quote, error) {
	last, ok := f.quotes[symbol]
	if !ok {
		return domain.Quote{}, domain.ErrNoData
	}
	return domain.Quote{Symbol: symbol, Last: last}, nil
}

func (f *fakeMarket) History(ctx context.Context, symbol string, period domain.Period, interval domain.Interval) ([]domain.Bar, error) {
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, domain.ErrNoData
	}
	return bars, nil
}

// fakeTrader records opens and closes against the shared position store.
type fakeTrader struct {
	positions *fakePositions
	opens     []string
	closes    []string
}

func (f *fakeTrader) OpenShort(ctx context.Context, symbol string) (domain.Position, domain.Transaction, error) {
	f.opens = append(f.opens, symbol)
	pos := domain.Position{Symbol: symbol, EntryPrice: 50, Quantity: 20, Type: domain.PositionTypeShort}
	_ = f.positions.Set(ctx, pos)
	return pos, domain.Transaction{}, nil
}

func (f *fakeTrader) CloseShort(ctx context.Context, reason string, quotedPrice float64) (domain.Transaction, error) {
	if !f.positions.open {
		return domain.Transaction{}, domain.ErrNoPosition
	}
	f.closes = append(f.closes, reason)
	_ = f.positions.Clear(ctx)
	return domain.Transaction{Symbol: f.positions.pos.Symbol, Reason: reason}, nil
}

// fakeScorer returns canned scores per symbol; unknown symbols are neutral.
type fakeScorer struct {
	scores map[string]int
}

func (f *fakeScorer) Score(symbol string, bars []domain.Bar) domain.Recommendation {
	score, ok := f.scores[symbol]
	if !ok {
		return domain.Recommendation{Symbol: symbol, Action: domain.ActionNeutral}
	}
	action := domain.ActionShort
	if score >= 70 {
		action = domain.ActionStrongShort
	}
	return domain.Recommendation{Symbol: symbol, Action: action, Score: score}
}

type fakeRefresher struct {
	calls int
}

func (f *fakeRefresher) RefreshAll(ctx context.Context) (int, error) {
	f.calls++
	return 1, nil
}

type fixture struct {
	sched     *Scheduler
	watchlist *fakeWatchlist
	positions *fakePositions
	trader    *fakeTrader
	market    *fakeMarket
	refresher *fakeRefresher
	loc       *time.Location
}

func newFixture(t *testing.T, scores map[string]int) *fixture {
	t.Helper()
	loc := SydneyLocation()

	watchlist := &fakeWatchlist{}
	for symbol := range scores {
		watchlist.entries = append(watchlist.entries, domain.WatchlistEntry{Symbol: symbol})
	}

	positions := &fakePositions{}
	trader := &fakeTrader{positions: positions}
	market := &fakeMarket{quotes: map[string]float64{}, bars: map[string][]domain.Bar{}}
	for symbol := range scores {
		market.quotes[symbol] = 50
		market.bars[symbol] = []domain.Bar{{Close: 50}}
	}
	refresher := &fakeRefresher{}

	sched := New(Config{
		RefreshInterval: time.Minute,
		CycleInterval:   time.Hour,
		MinShortScore:   60,
		Location:        loc,
	}, Deps{
		Watchlist: watchlist,
		Positions: positions,
		Settings:  &fakeSettings{s: domain.DefaultSettings()},
		Market:    market,
		Trader:    trader,
		Scorer:    &fakeScorer{scores: scores},
		Refresher: refresher,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &fixture{
		sched:     sched,
		watchlist: watchlist,
		positions: positions,
		trader:    trader,
		market:    market,
		refresher: refresher,
		loc:       loc,
	}
}

func TestTickInactiveDoesNothing(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 80})

	f.sched.Tick(context.Background(), tradingTime(f.loc))

	if f.refresher.calls != 0 {
		t.Errorf("refreshes = %d, want 0 while inactive", f.refresher.calls)
	}
	if len(f.trader.opens) != 0 {
		t.Errorf("opens = %v, want none while inactive", f.trader.opens)
	}
}

func TestTickOpensBestCandidate(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 65, "CBA.AX": 85, "WOW.AX": 40})
	f.sched.Start()

	f.sched.Tick(context.Background(), tradingTime(f.loc))

	if len(f.trader.opens) != 1 || f.trader.opens[0] != "CBA.AX" {
		t.Fatalf("opens = %v, want [CBA.AX]", f.trader.opens)
	}
	if !f.positions.open {
		t.Error("no position after open")
	}
}

func TestTickBelowMinScoreStaysFlat(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 55, "CBA.AX": 40})
	f.sched.Start()

	f.sched.Tick(context.Background(), tradingTime(f.loc))

	if len(f.trader.opens) != 0 {
		t.Errorf("opens = %v, want none below min score", f.trader.opens)
	}
}

func TestTickTieKeepsFirstSeen(t *testing.T) {
	f := newFixture(t, nil)
	// Deterministic watchlist order with equal scores.
	f.watchlist.entries = []domain.WatchlistEntry{
		{Symbol: "AAA.AX"}, {Symbol: "BBB.AX"}, {Symbol: "CCC.AX"},
	}
	scores := map[string]int{"AAA.AX": 75, "BBB.AX": 75, "CCC.AX": 75}
	f.sched.scorer = &fakeScorer{scores: scores}
	for symbol := range scores {
		f.market.quotes[symbol] = 50
		f.market.bars[symbol] = []domain.Bar{{Close: 50}}
	}
	f.sched.Start()

	f.sched.Tick(context.Background(), tradingTime(f.loc))

	if len(f.trader.opens) != 1 || f.trader.opens[0] != "AAA.AX" {
		t.Fatalf("opens = %v, want first-seen [AAA.AX]", f.trader.opens)
	}
}

func TestTickSkipsSymbolsWithoutHistory(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 90, "CBA.AX": 70})
	delete(f.market.bars, "BHP.AX")
	f.sched.Start()

	f.sched.Tick(context.Background(), tradingTime(f.loc))

	if len(f.trader.opens) != 1 || f.trader.opens[0] != "CBA.AX" {
		t.Fatalf("opens = %v, want [CBA.AX] after skipping BHP.AX", f.trader.opens)
	}
}

func TestTickOutsideHoursClosesPosition(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 80})
	f.sched.Start()
	now := tradingTime(f.loc)
	f.sched.Tick(context.Background(), now)
	if !f.positions.open {
		t.Fatal("setup: no position opened")
	}

	f.sched.Tick(context.Background(), afterHoursTime(f.loc))

	if f.positions.open {
		t.Error("position still open outside trading hours")
	}
	if len(f.trader.closes) != 1 || f.trader.closes[0] != domain.ReasonMarketClosed {
		t.Errorf("closes = %v, want [%q]", f.trader.closes, domain.ReasonMarketClosed)
	}
}

func TestTickOutsideHoursFlatIsNoOp(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 80})
	f.sched.Start()

	f.sched.Tick(context.Background(), afterHoursTime(f.loc))

	if len(f.trader.opens) != 0 || len(f.trader.closes) != 0 {
		t.Errorf("opens = %v closes = %v, want none outside hours", f.trader.opens, f.trader.closes)
	}
}

func TestTickTakeProfitExit(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 80})
	f.sched.Start()
	now := tradingTime(f.loc)
	f.sched.Tick(context.Background(), now)

	// Default TP is 2%: entry 50 targets 49.
	f.market.quotes["BHP.AX"] = 48.9
	f.sched.Tick(context.Background(), now.Add(time.Second))

	if len(f.trader.closes) != 1 || f.trader.closes[0] != domain.ReasonTakeProfit {
		t.Fatalf("closes = %v, want [%q]", f.trader.closes, domain.ReasonTakeProfit)
	}

	// Take profit rewinds the cycle clock: the very next tick selects again.
	f.market.quotes["BHP.AX"] = 50
	f.sched.Tick(context.Background(), now.Add(2*time.Second))
	if len(f.trader.opens) != 2 {
		t.Errorf("opens = %v, want immediate re-selection after take profit", f.trader.opens)
	}
}

func TestTickStopLossExit(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 80})
	f.sched.Start()
	now := tradingTime(f.loc)
	f.sched.Tick(context.Background(), now)

	// Default SL is 1%: entry 50 targets 50.5.
	f.market.quotes["BHP.AX"] = 50.6
	f.sched.Tick(context.Background(), now.Add(time.Second))

	if len(f.trader.closes) != 1 || f.trader.closes[0] != domain.ReasonStopLoss {
		t.Fatalf("closes = %v, want [%q]", f.trader.closes, domain.ReasonStopLoss)
	}
}

func TestTickHoldsInsideCycle(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 80})
	f.sched.Start()
	now := tradingTime(f.loc)
	f.sched.Tick(context.Background(), now)

	// Price between TP and SL targets, cycle not yet due.
	f.market.quotes["BHP.AX"] = 49.8
	f.sched.Tick(context.Background(), now.Add(30*time.Minute))

	if len(f.trader.closes) != 0 {
		t.Errorf("closes = %v, want none inside cycle", f.trader.closes)
	}
	if !f.positions.open {
		t.Error("position closed inside cycle")
	}
}

func TestTickCycleRotation(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 80})
	f.sched.Start()
	now := tradingTime(f.loc)
	f.sched.Tick(context.Background(), now)

	f.market.quotes["BHP.AX"] = 49.8
	f.sched.Tick(context.Background(), now.Add(time.Hour))

	if len(f.trader.closes) != 1 || f.trader.closes[0] != domain.ReasonCycleRotation {
		t.Fatalf("closes = %v, want [%q]", f.trader.closes, domain.ReasonCycleRotation)
	}
}

func TestTickQuoteFailureKeepsPosition(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 80})
	f.sched.Start()
	now := tradingTime(f.loc)
	f.sched.Tick(context.Background(), now)

	delete(f.market.quotes, "BHP.AX")
	f.sched.Tick(context.Background(), now.Add(time.Second))

	if !f.positions.open {
		t.Error("position closed despite quote failure")
	}
	if len(f.trader.closes) != 0 {
		t.Errorf("closes = %v, want none on quote failure", f.trader.closes)
	}
}

func TestTickRefreshInterval(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 10})
	f.sched.Start()
	now := tradingTime(f.loc)

	f.sched.Tick(context.Background(), now)
	f.sched.Tick(context.Background(), now.Add(30*time.Second))
	if f.refresher.calls != 1 {
		t.Errorf("refreshes = %d, want 1 inside interval", f.refresher.calls)
	}

	f.sched.Tick(context.Background(), now.Add(61*time.Second))
	if f.refresher.calls != 2 {
		t.Errorf("refreshes = %d, want 2 after interval elapsed", f.refresher.calls)
	}
}

func TestStopClosesOpenPosition(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 80})
	f.sched.Start()
	f.sched.Tick(context.Background(), tradingTime(f.loc))
	if !f.positions.open {
		t.Fatal("setup: no position opened")
	}

	if err := f.sched.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if f.sched.Running() {
		t.Error("still running after Stop")
	}
	if f.positions.open {
		t.Error("position still open after Stop")
	}
	if len(f.trader.closes) != 1 || f.trader.closes[0] != domain.ReasonManualShutdown {
		t.Errorf("closes = %v, want [%q]", f.trader.closes, domain.ReasonManualShutdown)
	}
}

func TestStopWhenFlat(t *testing.T) {
	f := newFixture(t, map[string]int{"BHP.AX": 10})
	f.sched.Start()

	if err := f.sched.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.sched.Running() {
		t.Error("still running after Stop")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.sched.Start()
	f.sched.Start()
	if !f.sched.Running() {
		t.Error("not running after Start")
	}
}

func TestManualRefresh(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.sched.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if f.refresher.calls != 1 {
		t.Errorf("refreshes = %d, want 1", f.refresher.calls)
	}
}
