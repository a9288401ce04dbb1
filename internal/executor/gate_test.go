package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/arbitrage"
	"github.com/alanyoungcy/spreadarb/internal/domain"
)

type fakeClient struct {
	mu      sync.Mutex
	calls   []decimal.Decimal
	sides   []domain.OrderSide
	err     error
	release chan struct{}
	started chan struct{}
}

func (f *fakeClient) PlaceMarketOrder(ctx context.Context, instrument string, side domain.OrderSide, qty decimal.Decimal) (domain.OrderResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, qty)
	f.sides = append(f.sides, side)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return domain.OrderResult{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.OrderResult{}, f.err
	}
	return domain.OrderResult{OrderID: "ord-" + string(side), Status: "FILLED"}, nil
}

func (f *fakeClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeExecStore struct {
	mu    sync.Mutex
	execs []domain.TradeExecution
}

func (s *fakeExecStore) Insert(_ context.Context, exec domain.TradeExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs = append(s.execs, exec)
	return nil
}

type fakeAlerter struct {
	mu     sync.Mutex
	events []string
}

func (a *fakeAlerter) Notify(_ context.Context, event, _, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

type fakeLocks struct{ held bool }

func (l *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

func testSizer() *arbitrage.Sizer {
	return arbitrage.NewSizer(decimal.NewFromInt(100),
		domain.MarketConstraint{Venue: domain.VenueBinance, StepSize: decimal.RequireFromString("0.001"), MinNotional: decimal.NewFromInt(10)},
		domain.MarketConstraint{Venue: domain.VenueOKX, StepSize: decimal.RequireFromString("0.0001"), MinNotional: decimal.NewFromInt(10)},
	)
}

func testSpread() domain.SpreadResult {
	return domain.SpreadResult{
		Instrument: "BTC/USDT",
		SellVenue:  domain.VenueBinance,
		BuyVenue:   domain.VenueOKX,
		SellPrice:  100,
		BuyPrice:   99.6,
		Fraction:   (100 - 99.6) / 99.6,
	}
}

func newTestGate(cfg GateConfig) *Gate {
	if cfg.Sizer == nil {
		cfg.Sizer = testSizer()
	}
	cfg.Trade.Instrument = "BTC/USDT"
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGate(cfg)
}

func TestAttemptTradeSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	bin := &fakeClient{release: release, started: started}
	okx := &fakeClient{release: release, started: started}
	g := newTestGate(GateConfig{Clients: map[domain.Venue]domain.OrderClient{
		domain.VenueBinance: bin,
		domain.VenueOKX:     okx,
	}})

	if !g.AttemptTrade(context.Background(), testSpread()) {
		t.Fatalf("first attempt should start")
	}
	<-started
	<-started

	for i := 0; i < 10; i++ {
		if g.AttemptTrade(context.Background(), testSpread()) {
			t.Fatalf("attempt %d started while trading", i)
		}
	}
	if !g.Trading() {
		t.Fatalf("gate should be trading")
	}

	close(release)
	g.Wait()

	if g.Trading() {
		t.Fatalf("gate should be idle after legs resolve")
	}
	if bin.count() != 1 || okx.count() != 1 {
		t.Fatalf("expected one order per venue, got binance=%d okx=%d", bin.count(), okx.count())
	}
	if bin.sides[0] != domain.OrderSideSell || okx.sides[0] != domain.OrderSideBuy {
		t.Fatalf("wrong sides: binance=%s okx=%s", bin.sides[0], okx.sides[0])
	}
	if st := g.Stats(); st.Attempts != 1 || st.Filled != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestAttemptTradeDryRun(t *testing.T) {
	bin, okx := &fakeClient{}, &fakeClient{}
	g := newTestGate(GateConfig{
		Trade:   domain.TradeConfig{DryRun: true},
		Clients: map[domain.Venue]domain.OrderClient{domain.VenueBinance: bin, domain.VenueOKX: okx},
	})

	if !g.AttemptTrade(context.Background(), testSpread()) {
		t.Fatalf("attempt should run")
	}
	g.Wait()
	if g.Trading() {
		t.Fatalf("dry run must leave the gate idle")
	}
	if bin.count()+okx.count() != 0 {
		t.Fatalf("dry run must not place orders")
	}
	if st := g.Stats(); st.DryRuns != 1 {
		t.Fatalf("DryRuns = %d, want 1", st.DryRuns)
	}
}

func TestAttemptTradeInvalidQty(t *testing.T) {
	bin, okx := &fakeClient{}, &fakeClient{}
	sizer := arbitrage.NewSizer(decimal.NewFromInt(5),
		domain.MarketConstraint{Venue: domain.VenueBinance, StepSize: decimal.RequireFromString("0.001"), MinNotional: decimal.NewFromInt(10)},
		domain.MarketConstraint{Venue: domain.VenueOKX, StepSize: decimal.RequireFromString("0.001"), MinNotional: decimal.NewFromInt(10)},
	)
	g := newTestGate(GateConfig{
		Sizer:   sizer,
		Clients: map[domain.Venue]domain.OrderClient{domain.VenueBinance: bin, domain.VenueOKX: okx},
	})

	g.AttemptTrade(context.Background(), testSpread())
	g.Wait()
	if g.Trading() {
		t.Fatalf("gate must return to idle after invalid sizing")
	}
	if bin.count()+okx.count() != 0 {
		t.Fatalf("invalid sizing must not place orders")
	}
	if st := g.Stats(); st.Invalid != 1 {
		t.Fatalf("Invalid = %d, want 1", st.Invalid)
	}
}

func TestAttemptTradePartialFailure(t *testing.T) {
	bin := &fakeClient{err: errors.New("insufficient balance")}
	okx := &fakeClient{}
	store := &fakeExecStore{}
	alerts := &fakeAlerter{}
	g := newTestGate(GateConfig{
		Clients: map[domain.Venue]domain.OrderClient{domain.VenueBinance: bin, domain.VenueOKX: okx},
		Store:   store,
		Alerter: alerts,
	})

	g.AttemptTrade(context.Background(), testSpread())
	g.Wait()

	if g.Trading() {
		t.Fatalf("gate must return to idle after a failed leg")
	}
	// No retry and no compensating order.
	if bin.count() != 1 || okx.count() != 1 {
		t.Fatalf("expected exactly one call per venue, got binance=%d okx=%d", bin.count(), okx.count())
	}
	if len(store.execs) != 1 {
		t.Fatalf("expected one execution record, got %d", len(store.execs))
	}
	exec := store.execs[0]
	if exec.Status != domain.ExecutionPartial {
		t.Fatalf("Status = %s, want partial", exec.Status)
	}
	if exec.Sell.Err == "" || exec.Buy.Err != "" {
		t.Fatalf("unexpected legs: buy=%+v sell=%+v", exec.Buy, exec.Sell)
	}
	if len(alerts.events) != 1 || alerts.events[0] != domain.EventLegUnhedged {
		t.Fatalf("expected leg_unhedged alert, got %v", alerts.events)
	}

	// The gate accepts a new attempt once idle.
	if !g.AttemptTrade(context.Background(), testSpread()) {
		t.Fatalf("gate should accept a new attempt")
	}
	g.Wait()
}

func TestAttemptTradeBothLegsFail(t *testing.T) {
	boom := errors.New("exchange down")
	store := &fakeExecStore{}
	g := newTestGate(GateConfig{
		Clients: map[domain.Venue]domain.OrderClient{
			domain.VenueBinance: &fakeClient{err: boom},
			domain.VenueOKX:     &fakeClient{err: boom},
		},
		Store: store,
	})
	g.AttemptTrade(context.Background(), testSpread())
	g.Wait()
	if len(store.execs) != 1 || store.execs[0].Status != domain.ExecutionFailed {
		t.Fatalf("expected failed execution, got %+v", store.execs)
	}
}

func TestAttemptTradeLegTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	store := &fakeExecStore{}
	g := newTestGate(GateConfig{
		Trade: domain.TradeConfig{LegTimeout: 20 * time.Millisecond},
		Clients: map[domain.Venue]domain.OrderClient{
			domain.VenueBinance: &fakeClient{release: block},
			domain.VenueOKX:     &fakeClient{},
		},
		Store: store,
	})
	g.AttemptTrade(context.Background(), testSpread())
	g.Wait()
	if len(store.execs) != 1 || store.execs[0].Status != domain.ExecutionPartial {
		t.Fatalf("expected partial execution after timeout, got %+v", store.execs)
	}
}

func TestAttemptTradeLockHeld(t *testing.T) {
	bin, okx := &fakeClient{}, &fakeClient{}
	g := newTestGate(GateConfig{
		Clients: map[domain.Venue]domain.OrderClient{domain.VenueBinance: bin, domain.VenueOKX: okx},
		Locks:   &fakeLocks{held: true},
	})
	g.AttemptTrade(context.Background(), testSpread())
	g.Wait()
	if bin.count()+okx.count() != 0 {
		t.Fatalf("no orders may be sent without the lock")
	}
	if g.Trading() {
		t.Fatalf("gate must return to idle when the lock is held")
	}
	if st := g.Stats(); st.Locked != 1 {
		t.Fatalf("Locked = %d, want 1", st.Locked)
	}
}

func TestPlaceLegReturnsAttributedError(t *testing.T) {
	g := newTestGate(GateConfig{Clients: map[domain.Venue]domain.OrderClient{
		domain.VenueBinance: &fakeClient{err: fmt.Errorf("%w: -2010", domain.ErrOrderRejected)},
		domain.VenueOKX:     &fakeClient{},
	}})
	qty := decimal.RequireFromString("0.5")

	sell := domain.TradeLeg{Venue: domain.VenueBinance, Side: domain.OrderSideSell, Qty: qty}
	err := g.placeLeg(context.Background(), "BTC/USDT", &sell)
	if !errors.Is(err, domain.ErrOrderRejected) {
		t.Fatalf("err = %v, want ErrOrderRejected", err)
	}
	if !strings.Contains(err.Error(), "sell binance") || sell.Err == "" {
		t.Fatalf("err = %q, leg = %+v", err, sell)
	}

	buy := domain.TradeLeg{Venue: domain.VenueOKX, Side: domain.OrderSideBuy, Qty: qty}
	if err := g.placeLeg(context.Background(), "BTC/USDT", &buy); err != nil {
		t.Fatalf("placeLeg: %v", err)
	}
	if buy.OrderID != "ord-buy" {
		t.Fatalf("OrderID = %q, want ord-buy", buy.OrderID)
	}

	missing := domain.TradeLeg{Venue: domain.Venue("kraken"), Side: domain.OrderSideBuy, Qty: qty}
	if err := g.placeLeg(context.Background(), "BTC/USDT", &missing); !errors.Is(err, domain.ErrUnknownVenue) {
		t.Fatalf("err = %v, want ErrUnknownVenue", err)
	}
}

func TestLockTTLCoversLegTimeout(t *testing.T) {
	tests := []struct {
		name       string
		lockTTL    time.Duration
		legTimeout time.Duration
		want       time.Duration
	}{
		{"defaults", 0, 0, defaultLockTTL},
		{"configured ttl kept", 2 * time.Minute, 10 * time.Second, 2 * time.Minute},
		{"raised to cover legs", 30 * time.Second, 45 * time.Second, 45*time.Second + lockMargin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGate(GateConfig{
				Trade:   domain.TradeConfig{LegTimeout: tt.legTimeout},
				LockTTL: tt.lockTTL,
			})
			if g.lockTTL != tt.want {
				t.Fatalf("lockTTL = %v, want %v", g.lockTTL, tt.want)
			}
		})
	}
}
