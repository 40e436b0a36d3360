// Package app initializes and holds the services shared by one CLI run: the
// output exporter, its blob store and publisher, the run tracker and the
// optional metrics server.
package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/gsc-crawl-errors/internal/api"
	"github.com/JakeFAU/gsc-crawl-errors/internal/clock"
	"github.com/JakeFAU/gsc-crawl-errors/internal/clock/system"
	"github.com/JakeFAU/gsc-crawl-errors/internal/config"
	"github.com/JakeFAU/gsc-crawl-errors/internal/id/uuid"
	"github.com/JakeFAU/gsc-crawl-errors/internal/output"
	"github.com/JakeFAU/gsc-crawl-errors/internal/publisher"
	"github.com/JakeFAU/gsc-crawl-errors/internal/storage"
)

// Options selects what New builds.
type Options struct {
	Config config.Config
	// Command names the running subcommand on /status.
	Command string
	// OutputDir overrides where tables land; the gcs provider treats it as an object prefix.
	OutputDir string
	Logger    *zap.Logger
}

// App holds the long-lived services of a run.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    clock.Clock
	exporter *output.Exporter
	tracker  *api.Tracker

	closers []namedCloser
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

type namedCloser struct {
	name  string
	close func() error
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Clock returns the wall clock used to stamp output.
func (a *App) Clock() clock.Clock { return a.clock }

// Exporter returns the table exporter for this run.
func (a *App) Exporter() *output.Exporter { return a.exporter }

// Tracker returns the progress tracker served on /status.
func (a *App) Tracker() *api.Tracker { return a.tracker }

// New builds every service the run needs and fails fast if one cannot start.
func New(ctx context.Context, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	clk := system.New()

	runID, err := uuid.NewGenerator().NewID()
	if err != nil {
		return nil, fmt.Errorf("create run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))

	a := &App{
		cfg:     cfg,
		logger:  logger,
		clock:   clk,
		tracker: api.NewTracker(runID, opts.Command, clk.Now()),
	}

	store, closeStore, err := storage.New(ctx, storage.Config{
		Provider:  cfg.Output.Provider,
		Dir:       opts.OutputDir,
		GCSBucket: cfg.Output.GCSBucket,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.closers = append(a.closers, namedCloser{name: "storage", close: closeStore})

	pub, closePub, err := publisher.New(ctx, publisher.Config{
		Provider:  cfg.Notify.Provider,
		ProjectID: cfg.Notify.ProjectID,
		TopicID:   cfg.Notify.TopicID,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize publisher: %w", err)
	}
	a.closers = append(a.closers, namedCloser{name: "publisher", close: closePub})

	a.exporter = output.NewExporter(store, pub, runID, clk, logger)

	if cfg.Metrics.Addr != "" {
		a.startMetrics(ctx, cfg.Metrics.Addr)
	}

	logger.Debug("application services initialized")
	return a, nil
}

func (a *App) startMetrics(ctx context.Context, addr string) {
	srvCtx, cancel := context.WithCancel(ctx)
	a.stop = cancel
	srv := api.NewServer(a.tracker, a.logger)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := srv.Serve(srvCtx, addr); err != nil {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Close shuts services down in reverse start order. Errors are logged.
func (a *App) Close() {
	if a.stop != nil {
		a.stop()
		a.wg.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
