// Package cmd defines the gscerrors CLI: crawl-errors exports Search Console
// crawl error samples and redirects maps those exports to replacement paths.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gsc-crawl-errors/internal/api"
	"github.com/JakeFAU/gsc-crawl-errors/internal/app"
	"github.com/JakeFAU/gsc-crawl-errors/internal/clock"
	"github.com/JakeFAU/gsc-crawl-errors/internal/config"
	"github.com/JakeFAU/gsc-crawl-errors/internal/logging"
	"github.com/JakeFAU/gsc-crawl-errors/internal/output"
	"github.com/JakeFAU/gsc-crawl-errors/internal/telemetry"
)

var cfgFile string

// App is the set of run services commands rely on. Tests swap in their own.
type App interface {
	Config() config.Config
	Logger() *zap.Logger
	Clock() clock.Clock
	Exporter() *output.Exporter
	Tracker() *api.Tracker
	Close()
}

// newApp is the application factory, replaceable in tests.
var newApp = func(ctx context.Context, opts app.Options) (App, error) {
	a, err := app.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// rootBindings map persistent flags onto config keys.
var rootBindings = []config.Binding{
	{Flag: "metrics-addr", Key: "metrics.addr"},
	{Flag: "dev", Key: "logging.development"},
	{Flag: "log-level", Key: "logging.level"},
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gscerrors",
		Short: "Export Search Console crawl errors and map them to redirects.",
		Long: `gscerrors pulls crawl error samples for a Search Console property, one
table per error category, and resolves the URLs in those tables to
replacement paths using an ordered substring mapping file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().String("metrics-addr", "", "serve /healthz, /status and /metrics on this address during the run")
	cmd.PersistentFlags().Bool("dev", false, "use the development logger")
	cmd.PersistentFlags().String("log-level", "", "minimum log level (debug, info, warn, error)")

	cmd.AddCommand(newCrawlErrorsCmd())
	cmd.AddCommand(newRedirectsCmd())
	return cmd
}

// setup loads configuration for the running command, builds its logger and
// the run services. Callers must Close the returned App.
func setup(cmd *cobra.Command, bindings []config.Binding, outputDir func(config.Config) string) (App, error) {
	all := append(append([]config.Binding(nil), rootBindings...), bindings...)
	cfg, err := config.Load(cfgFile, cmd.Flags(), all...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	a, err := newApp(cmd.Context(), app.Options{
		Config:    cfg,
		Command:   cmd.Name(),
		OutputDir: outputDir(cfg),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application services: %w", err)
	}
	return a, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	tp, err := telemetry.InitTracerProvider(ctx, "gscerrors")
	if err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "init tracing:", err)
		os.Exit(1)
	}

	err = newRootCmd().ExecuteContext(ctx)
	shutdownTracing(tp, zap.L())
	stop()
	if err != nil {
		zap.L().Fatal("command execution failed", zap.Error(err))
	}
}

type tracerShutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownTracing flushes pending spans, logging a failure instead of failing the run.
func shutdownTracing(tp tracerShutdowner, logger *zap.Logger) {
	if err := tp.Shutdown(context.Background()); err != nil {
		logger.Error("failed to flush tracer provider", zap.Error(err))
	}
}
