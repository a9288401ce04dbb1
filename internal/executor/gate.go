// Package executor places the two legs of a spread trade, one trade at a time.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadarb/internal/arbitrage"
	"github.com/alanyoungcy/spreadarb/internal/domain"
)

const (
	defaultLockTTL = 30 * time.Second
	lockMargin     = 30 * time.Second
)

// Sizer computes the tradable quantity for a spread.
type Sizer interface {
	Size(sr domain.SpreadResult) arbitrage.Sizing
}

// GateConfig configures a Gate. Locks, Store and Alerter are optional.
type GateConfig struct {
	Trade   domain.TradeConfig
	Sizer   Sizer
	Clients map[domain.Venue]domain.OrderClient
	Locks   domain.LockManager
	LockTTL time.Duration
	Store   domain.ExecutionStore
	Alerter domain.Alerter
	Logger  *slog.Logger
}

// GateStats counts gate outcomes since start.
type GateStats struct {
	Attempts int64 `json:"attempts"`
	Invalid  int64 `json:"invalid_qty"`
	DryRuns  int64 `json:"dry_runs"`
	Filled   int64 `json:"filled"`
	Partial  int64 `json:"partial"`
	Failed   int64 `json:"failed"`
	Locked   int64 `json:"lock_held"`
}

// Gate is a single-flight trade executor with two states, idle and trading.
// At most one attempt is in flight; attempts made while trading are no-ops.
// A failed leg is logged and alerted but never retried or compensated.
type Gate struct {
	cfg     domain.TradeConfig
	sizer   Sizer
	clients map[domain.Venue]domain.OrderClient
	locks   domain.LockManager
	lockTTL time.Duration
	store   domain.ExecutionStore
	alerter domain.Alerter
	logger  *slog.Logger
	now     func() time.Time

	trading atomic.Bool
	wg      sync.WaitGroup

	attempts, invalid, dryRuns atomic.Int64
	filled, partial, failed    atomic.Int64
	locked                     atomic.Int64
}

// NewGate creates an idle Gate.
func NewGate(cfg GateConfig) *Gate {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	// The lock must outlive both legs plus the report that follows them.
	if lt := cfg.Trade.LegTimeout; lt > 0 && ttl < lt+lockMargin {
		ttl = lt + lockMargin
	}
	return &Gate{
		cfg:     cfg.Trade,
		sizer:   cfg.Sizer,
		clients: cfg.Clients,
		locks:   cfg.Locks,
		lockTTL: ttl,
		store:   cfg.Store,
		alerter: cfg.Alerter,
		logger:  cfg.Logger.With(slog.String("component", "execution_gate")),
		now:     time.Now,
	}
}

// Trading reports whether an attempt is in flight.
func (g *Gate) Trading() bool { return g.trading.Load() }

// AttemptTrade tries to trade sr. It returns false without side effects when
// another attempt is in flight. Sizing and dry-run are handled synchronously;
// the order legs run in the background and the gate returns to idle once both
// resolve. The legs are not cancelled when ctx is.
func (g *Gate) AttemptTrade(ctx context.Context, sr domain.SpreadResult) bool {
	if !g.trading.CompareAndSwap(false, true) {
		return false
	}
	g.attempts.Add(1)

	sizing := g.sizer.Size(sr)
	if !sizing.Valid() {
		g.invalid.Add(1)
		g.logger.WarnContext(ctx, "invalid quantity, trade skipped",
			slog.String("instrument", sr.Instrument),
			slog.String("buy_venue", string(sr.BuyVenue)),
			slog.String("sell_venue", string(sr.SellVenue)),
			slog.String("target_qty", sizing.TargetQty.String()),
			slog.String("qty", sizing.Qty.String()),
			slog.String("reason", sizing.Reason),
		)
		g.trading.Store(false)
		return true
	}

	g.logger.InfoContext(ctx, "signal: execute arbitrage",
		slog.String("instrument", sr.Instrument),
		slog.String("buy_venue", string(sr.BuyVenue)),
		slog.String("sell_venue", string(sr.SellVenue)),
		slog.Float64("buy_price", sr.BuyPrice),
		slog.Float64("sell_price", sr.SellPrice),
		slog.String("qty", sizing.Qty.String()),
		slog.String("spread", domain.Pct(sr.Fraction)),
	)

	if g.cfg.DryRun {
		g.dryRuns.Add(1)
		g.logger.WarnContext(ctx, "dry run, orders not sent")
		g.trading.Store(false)
		return true
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.trading.Store(false)
		g.execute(context.WithoutCancel(ctx), sr, sizing.Qty)
	}()
	return true
}

// Wait blocks until the in-flight attempt, if any, has resolved.
func (g *Gate) Wait() { g.wg.Wait() }

// Stats returns a snapshot of the outcome counters.
func (g *Gate) Stats() GateStats {
	return GateStats{
		Attempts: g.attempts.Load(),
		Invalid:  g.invalid.Load(),
		DryRuns:  g.dryRuns.Load(),
		Filled:   g.filled.Load(),
		Partial:  g.partial.Load(),
		Failed:   g.failed.Load(),
		Locked:   g.locked.Load(),
	}
}

func (g *Gate) execute(ctx context.Context, sr domain.SpreadResult, qty decimal.Decimal) {
	if g.locks != nil {
		release, err := g.locks.Acquire(ctx, "trade:"+sr.Instrument, g.lockTTL)
		if err != nil {
			g.locked.Add(1)
			g.logger.WarnContext(ctx, "trade lock unavailable, attempt abandoned",
				slog.String("instrument", sr.Instrument),
				slog.String("error", err.Error()),
			)
			return
		}
		defer release()
	}

	exec := domain.TradeExecution{
		ID:         uuid.New().String(),
		Instrument: sr.Instrument,
		Spread:     sr,
		Qty:        qty,
		Buy:        domain.TradeLeg{Venue: sr.BuyVenue, Side: domain.OrderSideBuy, Price: sr.BuyPrice, Qty: qty},
		Sell:       domain.TradeLeg{Venue: sr.SellVenue, Side: domain.OrderSideSell, Price: sr.SellPrice, Qty: qty},
		StartedAt:  g.now().UTC(),
	}

	// Both legs are dispatched before either is awaited. A plain Group, so one
	// leg failing does not cancel the other.
	var eg errgroup.Group
	eg.Go(func() error { return g.placeLeg(ctx, sr.Instrument, &exec.Buy) })
	eg.Go(func() error { return g.placeLeg(ctx, sr.Instrument, &exec.Sell) })
	if err := eg.Wait(); err != nil {
		g.logger.ErrorContext(ctx, "order leg failed",
			slog.String("instrument", sr.Instrument),
			slog.String("error", err.Error()),
		)
	}

	exec.CompletedAt = g.now().UTC()
	exec.Status = domain.ClassifyLegs(exec.Buy, exec.Sell)
	g.report(ctx, exec)
}

// placeLeg sends one market order and records the outcome on leg. The
// returned error names the venue and side.
func (g *Gate) placeLeg(ctx context.Context, instrument string, leg *domain.TradeLeg) error {
	client, ok := g.clients[leg.Venue]
	if !ok {
		err := fmt.Errorf("%w: no order client for %s", domain.ErrUnknownVenue, leg.Venue)
		leg.Err = err.Error()
		return fmt.Errorf("executor: %s %s: %w", leg.Side, leg.Venue, err)
	}

	if g.cfg.LegTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.LegTimeout)
		defer cancel()
	}

	res, err := client.PlaceMarketOrder(ctx, instrument, leg.Side, leg.Qty)
	if err != nil {
		leg.Err = err.Error()
		return fmt.Errorf("executor: %s %s qty %s: %w", leg.Side, leg.Venue, leg.Qty, err)
	}
	leg.OrderID = res.OrderID
	return nil
}

func (g *Gate) report(ctx context.Context, exec domain.TradeExecution) {
	attrs := []any{
		slog.String("execution_id", exec.ID),
		slog.String("instrument", exec.Instrument),
		slog.String("qty", exec.Qty.String()),
		slog.String("buy_venue", string(exec.Buy.Venue)),
		slog.String("buy_order_id", exec.Buy.OrderID),
		slog.String("sell_venue", string(exec.Sell.Venue)),
		slog.String("sell_order_id", exec.Sell.OrderID),
		slog.Duration("elapsed", exec.CompletedAt.Sub(exec.StartedAt)),
	}

	switch exec.Status {
	case domain.ExecutionFilled:
		g.filled.Add(1)
		g.logger.InfoContext(ctx, "orders sent", attrs...)
		g.alert(ctx, domain.EventTradeFilled, "Arbitrage executed",
			fmt.Sprintf("%s qty %s: bought on %s, sold on %s at %s",
				exec.Instrument, exec.Qty, exec.Buy.Venue, exec.Sell.Venue, domain.Pct(exec.Spread.Fraction)))
	case domain.ExecutionPartial:
		g.partial.Add(1)
		filled, failed := exec.Buy, exec.Sell
		if !filled.OK() {
			filled, failed = exec.Sell, exec.Buy
		}
		g.logger.ErrorContext(ctx, "position left unhedged", append(attrs,
			slog.String("filled_venue", string(filled.Venue)),
			slog.String("filled_side", string(filled.Side)),
			slog.String("failed_venue", string(failed.Venue)),
			slog.String("error", failed.Err),
		)...)
		g.alert(ctx, domain.EventLegUnhedged, "Unhedged leg",
			fmt.Sprintf("%s qty %s: %s %s filled, %s %s failed: %s",
				exec.Instrument, exec.Qty, filled.Side, filled.Venue, failed.Side, failed.Venue, failed.Err))
	default:
		g.failed.Add(1)
		g.logger.ErrorContext(ctx, "arbitrage failed, both legs rejected", append(attrs,
			slog.String("buy_error", exec.Buy.Err),
			slog.String("sell_error", exec.Sell.Err),
		)...)
		g.alert(ctx, domain.EventTradeFailed, "Arbitrage failed",
			fmt.Sprintf("%s qty %s: buy %s: %s; sell %s: %s",
				exec.Instrument, exec.Qty, exec.Buy.Venue, exec.Buy.Err, exec.Sell.Venue, exec.Sell.Err))
	}

	if g.store != nil {
		storeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := g.store.Insert(storeCtx, exec); err != nil {
			g.logger.WarnContext(ctx, "trade execution record failed",
				slog.String("execution_id", exec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (g *Gate) alert(ctx context.Context, event, title, msg string) {
	if g.alerter == nil {
		return
	}
	alertCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := g.alerter.Notify(alertCtx, event, title, msg); err != nil {
		g.logger.WarnContext(ctx, "alert failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}
