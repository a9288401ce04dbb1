// Package engine is the quote reactor: every quote update flows through the
// book, the spread evaluator, the recorder and, when actionable, the gate.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/arbitrage"
	"github.com/alanyoungcy/spreadarb/internal/book"
	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Recorder receives opportunity and max-spread bookkeeping.
type Recorder interface {
	RecordOpportunity(sr domain.SpreadResult, profitable bool) domain.Opportunity
	CheckAndRecordMaxSpread(sr domain.SpreadResult) bool
	CurrentMaxSpread() float64
}

// Gate is the single-flight trade executor.
type Gate interface {
	Trading() bool
	AttemptTrade(ctx context.Context, sr domain.SpreadResult) bool
}

// Config wires an Engine.
type Config struct {
	Trade     domain.TradeConfig
	Book      *book.Store
	Evaluator *arbitrage.Evaluator
	Recorder  Recorder
	Gate      Gate
	QueueSize int
	Logger    *slog.Logger
}

// Engine processes quotes strictly in arrival order on a single goroutine.
type Engine struct {
	cfg       domain.TradeConfig
	book      *book.Store
	evaluator *arbitrage.Evaluator
	recorder  Recorder
	gate      Gate
	logger    *slog.Logger
	now       func() time.Time

	quotes chan domain.Quote
	done   chan struct{}
	once   sync.Once

	updates, stale, incomplete, evaluations atomic.Int64
	opportunities, attempts, skipped        atomic.Int64

	mu   sync.RWMutex
	last *arbitrage.Evaluation
}

// New creates an Engine. Run must be started for quotes to be processed.
func New(cfg Config) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Engine{
		cfg:       cfg.Trade,
		book:      cfg.Book,
		evaluator: cfg.Evaluator,
		recorder:  cfg.Recorder,
		gate:      cfg.Gate,
		logger:    cfg.Logger.With(slog.String("component", "engine")),
		now:       time.Now,
		quotes:    make(chan domain.Quote, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// OnQuote is the quote feed callback. It blocks while the queue is full and
// returns immediately once the engine has stopped; quotes are never coalesced.
func (e *Engine) OnQuote(q domain.Quote) {
	select {
	case e.quotes <- q:
	case <-e.done:
	}
}

// Run processes queued quotes until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer e.once.Do(func() { close(e.done) })

	e.logger.InfoContext(ctx, "engine started",
		slog.String("instrument", e.cfg.Instrument),
		slog.String("min_spread", domain.Pct(e.evaluator.MinFraction())),
		slog.Bool("dry_run", e.cfg.DryRun),
	)
	defer e.logger.Info("engine stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case q := <-e.quotes:
			e.handle(ctx, q)
		}
	}
}

func (e *Engine) handle(ctx context.Context, q domain.Quote) {
	e.updates.Add(1)
	e.book.Update(q)

	a, b := domain.Venues[0], domain.Venues[1]
	now := e.now()
	if !e.book.IsFresh(a, now, e.cfg.StalenessWindow) || !e.book.IsFresh(b, now, e.cfg.StalenessWindow) {
		e.stale.Add(1)
		return
	}

	pair, ok := e.book.Snapshot()
	if !ok {
		e.incomplete.Add(1)
		e.logger.WarnContext(ctx, "incomplete data, waiting for valid prices on both venues",
			slog.Float64(string(a)+"_bid", pair.A.Bid),
			slog.Float64(string(a)+"_ask", pair.A.Ask),
			slog.Float64(string(b)+"_bid", pair.B.Bid),
			slog.Float64(string(b)+"_ask", pair.B.Ask),
		)
		return
	}

	ev := e.evaluator.Evaluate(pair)
	e.evaluations.Add(1)
	e.mu.Lock()
	e.last = &ev
	e.mu.Unlock()

	for _, sr := range ev.Directions() {
		e.recorder.CheckAndRecordMaxSpread(sr)
	}

	e.logger.DebugContext(ctx, "spread comparison",
		slog.Float64(string(a)+"_bid", pair.A.Bid),
		slog.Float64(string(a)+"_ask", pair.A.Ask),
		slog.Float64(string(b)+"_bid", pair.B.Bid),
		slog.Float64(string(b)+"_ask", pair.B.Ask),
		slog.String("sell_a_buy_b", domain.Pct(ev.SellABuyB.Fraction)),
		slog.String("sell_b_buy_a", domain.Pct(ev.SellBBuyA.Fraction)),
		slog.String("min_required", domain.Pct(ev.MinFraction)),
	)

	sr, ok := ev.Actionable()
	if !ok {
		return
	}
	e.opportunities.Add(1)
	e.recorder.RecordOpportunity(sr, true)

	if e.gate.Trading() {
		e.skipped.Add(1)
		e.logger.DebugContext(ctx, "trade in flight, opportunity not executed")
		return
	}
	if e.gate.AttemptTrade(ctx, sr) {
		e.attempts.Add(1)
	}
}
