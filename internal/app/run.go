package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadarb/internal/arbitrage"
	s3blob "github.com/alanyoungcy/spreadarb/internal/blob/s3"
	"github.com/alanyoungcy/spreadarb/internal/book"
	"github.com/alanyoungcy/spreadarb/internal/crypto"
	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/engine"
	"github.com/alanyoungcy/spreadarb/internal/executor"
	"github.com/alanyoungcy/spreadarb/internal/feed"
	"github.com/alanyoungcy/spreadarb/internal/platform/binance"
	"github.com/alanyoungcy/spreadarb/internal/platform/okx"
	"github.com/alanyoungcy/spreadarb/internal/recorder"
	"github.com/alanyoungcy/spreadarb/internal/server"
	"github.com/alanyoungcy/spreadarb/internal/server/handler"
)

// venueClient is what the app needs from each venue's REST client.
type venueClient interface {
	domain.RulesProvider
	domain.OrderClient
}

// runtime holds the constructed components for one run.
type runtime struct {
	recorder *recorder.Recorder
	gate     *executor.Gate
	engine   *engine.Engine
	feeds    []*feed.WSFeed
	server   *server.Server
	archiver *s3blob.LogArchiver
}

func (a *App) venueClients() map[domain.Venue]venueClient {
	var bAuth *crypto.BinanceAuth
	if a.cfg.Binance.APIKey != "" {
		bAuth = &crypto.BinanceAuth{Key: a.cfg.Binance.APIKey, Secret: a.cfg.Binance.APISecret}
	}
	var oAuth *crypto.OKXAuth
	if a.cfg.OKX.APIKey != "" {
		oAuth = &crypto.OKXAuth{Key: a.cfg.OKX.APIKey, Secret: a.cfg.OKX.APISecret, Passphrase: a.cfg.OKX.Passphrase}
	}
	return map[domain.Venue]venueClient{
		domain.VenueBinance: binance.NewClient(a.cfg.Binance.RestHost, bAuth, a.cfg.Binance.RecvWindowMs),
		domain.VenueOKX:     okx.NewClient(a.cfg.OKX.RestHost, oAuth, a.cfg.OKX.Simulated),
	}
}

// loadConstraints fetches both venues' rules in parallel. Any failure is
// fatal: trading without a step size could send unfillable orders.
func (a *App) loadConstraints(ctx context.Context, clients map[domain.Venue]venueClient) ([]domain.MarketConstraint, error) {
	timeout := a.cfg.Trade.RulesTimeout.Duration
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := make([]domain.MarketConstraint, len(domain.Venues))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range domain.Venues {
		g.Go(func() error {
			mc, err := clients[v].LoadMarketConstraint(gctx, a.cfg.Instrument)
			if err != nil {
				return fmt.Errorf("load %s rules: %w", v, err)
			}
			out[i] = mc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	for _, mc := range out {
		a.logger.InfoContext(ctx, "market constraint loaded",
			slog.String("venue", string(mc.Venue)),
			slog.String("step_size", mc.StepSize.String()),
			slog.String("min_qty", mc.MinQty.String()),
			slog.String("min_notional", mc.MinNotional.String()),
		)
	}
	return out, nil
}

func (a *App) build(ctx context.Context, deps *Dependencies) (*runtime, error) {
	trade := a.cfg.TradeParams()
	clients := a.venueClients()

	constraints, err := a.loadConstraints(ctx, clients)
	if err != nil {
		return nil, err
	}

	rec, err := recorder.New(recorder.Config{
		Dir:       a.cfg.Recorder.Dir,
		QueueSize: a.cfg.Recorder.QueueSize,
		Store:     deps.OpportunityStore,
		Publisher: deps.Publisher,
		Alerter:   deps.Alerter,
		Logger:    a.base,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rec.Close() })

	orderClients := make(map[domain.Venue]domain.OrderClient, len(clients))
	for v, c := range clients {
		orderClients[v] = c
	}
	gate := executor.NewGate(executor.GateConfig{
		Trade:   trade,
		Sizer:   arbitrage.NewSizer(trade.QuoteBudget, constraints...),
		Clients: orderClients,
		Locks:   deps.LockManager,
		LockTTL: a.cfg.Redis.LockTTL.Duration,
		Store:   deps.ExecutionStore,
		Alerter: deps.Alerter,
		Logger:  a.base,
	})

	eng := engine.New(engine.Config{
		Trade:     trade,
		Book:      book.NewStore(domain.Venues[0], domain.Venues[1], a.base),
		Evaluator: arbitrage.NewEvaluator(trade),
		Recorder:  rec,
		Gate:      gate,
		QueueSize: a.cfg.Trade.QueueSize,
		Logger:    a.base,
	})

	bAdapter, err := binance.NewAdapter(a.cfg.Binance.WsHost, a.cfg.Instrument)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	oAdapter, err := okx.NewAdapter(a.cfg.OKX.WsHost, a.cfg.Instrument)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	rt := &runtime{
		recorder: rec,
		gate:     gate,
		engine:   eng,
		feeds: []*feed.WSFeed{
			feed.NewWSFeed(bAdapter, eng.OnQuote, a.base),
			feed.NewWSFeed(oAdapter, eng.OnQuote, a.base),
		},
	}

	if a.cfg.Server.Enabled {
		rt.server = server.NewServer(server.Config{
			Port:   a.cfg.Server.Port,
			APIKey: a.cfg.Server.APIKey,
		}, server.Handlers{
			Health:        handler.NewHealthHandler(time.Now()),
			Status:        handler.NewStatusHandler(rt.snapshot),
			Opportunities: handler.NewOpportunityHandler(deps.OpportunityStore, a.base),
		}, a.base)
	}

	if deps.BlobWriter != nil {
		rt.archiver = s3blob.NewLogArchiver(s3blob.ArchiverConfig{
			Writer:     deps.BlobWriter,
			Prefix:     a.cfg.S3.Prefix,
			Instrument: a.cfg.Instrument,
			Files:      []string{rec.OpportunitiesPath(), rec.MaxSpreadPath()},
			Interval:   a.cfg.S3.ArchiveInterval.Duration,
			Logger:     a.base,
		})
	}
	return rt, nil
}

func (rt *runtime) snapshot() handler.Snapshot {
	s := handler.Snapshot{
		Engine:   rt.engine.Status(),
		Gate:     rt.gate.Stats(),
		Recorder: rt.recorder.Stats(),
	}
	for _, f := range rt.feeds {
		quotes, dropped := f.Stats()
		s.Feeds = append(s.Feeds, handler.FeedStatus{
			Venue:     f.Venue(),
			Connected: f.Connected(),
			Quotes:    quotes,
			Dropped:   dropped,
		})
	}
	return s
}

// run blocks until ctx is cancelled or a surface fails, then stops things in
// dependency order: feeds, engine, in-flight trade, recorder queue.
func (a *App) run(ctx context.Context, rt *runtime) error {
	// The engine and recorder outlive ctx so that they can finish the work
	// the feeds already handed them.
	engCtx, stopEngine := context.WithCancel(context.WithoutCancel(ctx))
	defer stopEngine()
	engDone := make(chan error, 1)
	go func() { engDone <- rt.engine.Run(engCtx) }()

	recCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRecorder()
	recDone := make(chan error, 1)
	go func() { recDone <- rt.recorder.Run(recCtx) }()

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range rt.feeds {
		g.Go(func() error { return f.Run(gctx) })
	}
	if rt.server != nil {
		g.Go(func() error { return rt.server.Run(gctx) })
	}
	if rt.archiver != nil {
		g.Go(func() error { return rt.archiver.Run(gctx) })
	}
	err := g.Wait()

	a.logger.Info("feeds stopped, draining")
	stopEngine()
	<-engDone

	rt.gate.Wait()

	stopRecorder()
	<-recDone
	if cerr := rt.recorder.Close(); cerr != nil {
		a.logger.Warn("recorder close failed", slog.String("error", cerr.Error()))
	}

	st := rt.gate.Stats()
	a.logger.Info("run finished",
		slog.Int64("trade_attempts", st.Attempts),
		slog.Int64("filled", st.Filled),
		slog.Int64("partial", st.Partial),
		slog.Int64("failed", st.Failed),
	)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}
