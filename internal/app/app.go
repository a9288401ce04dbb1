// Package app wires the spread arbitrage bot together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/spreadarb/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	base    *slog.Logger // components derive their own "component" attribute
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		base:   logger,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires every dependency, loads the venues' trading rules and runs the
// feeds, engine and optional surfaces until ctx is cancelled. A failure to
// load the trading rules is returned and aborts startup.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("instrument", a.cfg.Instrument),
		slog.Bool("dry_run", a.cfg.Trade.DryRun),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.base)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	rt, err := a.build(ctx, deps)
	if err != nil {
		return err
	}
	return a.run(ctx, rt)
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
