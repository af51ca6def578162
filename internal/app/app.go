// Package app owns the process lifecycle: it wires stores and caches, then
// runs the goroutines the configured mode calls for until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/skintrend/internal/config"
)

// App holds the configuration and the cleanups registered while wiring.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// modeRunner starts one operating mode and blocks until ctx ends.
type modeRunner func(a *App, ctx context.Context, deps *Dependencies) error

var modes = map[string]modeRunner{
	"full":   (*App).FullMode,
	"market": (*App).MarketMode,
	"server": (*App).ServerMode,
}

// Run wires dependencies and runs the configured mode. Resources acquired
// here are released by Close, not by Run.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(strings.TrimSpace(a.cfg.Mode))
	runMode, ok := modes[mode]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	a.logger.InfoContext(ctx, "app: starting",
		slog.String("mode", mode),
		slog.Any("config", config.RedactedConfig(a.cfg)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return runMode(a, ctx, deps)
}

// Close runs the registered cleanups newest first. Later calls do nothing.
func (a *App) Close() {
	if len(a.closers) == 0 {
		return
	}
	a.logger.Info("app: shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
