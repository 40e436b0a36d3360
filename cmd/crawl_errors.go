package cmd

import (
	"context"
	"fmt"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/gsc-crawl-errors/internal/auth"
	"github.com/JakeFAU/gsc-crawl-errors/internal/config"
	"github.com/JakeFAU/gsc-crawl-errors/internal/fetcher"
	"github.com/JakeFAU/gsc-crawl-errors/internal/output"
	"github.com/JakeFAU/gsc-crawl-errors/internal/policy/ratelimit"
	"github.com/JakeFAU/gsc-crawl-errors/internal/report"
	"github.com/JakeFAU/gsc-crawl-errors/internal/searchconsole"
)

var crawlErrorsBindings = []config.Binding{
	{Flag: "category", Key: "report.categories"},
	{Flag: "platform", Key: "report.platforms"},
	{Flag: "output-location", Key: "output.dir"},
	{Flag: "url-type", Key: "report.file_prefix"},
	{Flag: "secrets-file", Key: "api.secrets_file"},
	{Flag: "accumulation", Key: "report.accumulation"},
}

// newSearchClient builds the authorized reporting API client, replaceable in tests.
var newSearchClient = func(cmd *cobra.Command, cfg config.Config, logger *zap.Logger) (searchconsole.Client, error) {
	httpClient, err := auth.NewHTTPClient(cmd.Context(), auth.Config{
		Mode:        cfg.API.AuthMode,
		SecretsFile: cfg.API.SecretsFile,
		TokenFile:   cfg.API.TokenFile,
		Scopes:      []string{searchconsole.Scope},
	}, auth.StdioPrompter{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()}, logger)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	httpClient.Timeout = cfg.APITimeout()
	return searchconsole.NewHTTPClient(httpClient, cfg.API.BaseURL, logger)
}

func newCrawlErrorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl-errors <property_uri>",
		Short: "Export crawl error samples for a property, one table per category",
		Long: `Queries the Search Console crawl error samples endpoint for every
category and platform (or the ones given) and writes one table per category.
The property URI must exactly match a property in Search Console.`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlErrors,
	}
	cmd.Flags().String("category", "", "only query this crawl error category")
	cmd.Flags().String("platform", "", "only query this platform (mobile, smartphoneOnly, web)")
	cmd.Flags().String("output-location", "", "directory (or object prefix) for the exported tables")
	cmd.Flags().String("url-type", "", "prefix added to every exported file name")
	cmd.Flags().String("secrets-file", "", "client secrets file for the installed-app OAuth flow")
	cmd.Flags().String("accumulation", "", "how platform results combine per category (concatenate, last_platform)")
	cmd.Flags().Bool("progress", true, "show a progress bar on stderr")
	return cmd
}

func runCrawlErrors(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, crawlErrorsBindings, func(c config.Config) string { return c.Output.Dir })
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Config()
	logger := a.Logger()
	propertyURI := args[0]

	ctx, span := otel.Tracer("github.com/JakeFAU/gsc-crawl-errors/cmd").Start(cmd.Context(), "crawl-errors",
		trace.WithAttributes(attribute.String("gsc.property", propertyURI)))
	defer span.End()

	categories, err := parseList(cfg.Report.Categories, searchconsole.ParseCategory, searchconsole.DefaultCategories)
	if err != nil {
		return err
	}
	platforms, err := parseList(cfg.Report.Platforms, searchconsole.ParsePlatform, searchconsole.DefaultPlatforms)
	if err != nil {
		return err
	}
	mode, err := report.ParseAccumulation(cfg.Report.Accumulation)
	if err != nil {
		return err
	}

	client, err := newSearchClient(cmd, cfg, logger)
	if err != nil {
		return fmt.Errorf("build search console client: %w", err)
	}

	f := fetcher.New(
		client,
		ratelimit.New(ratelimit.Config{PerMinute: cfg.Fetch.RatePerMinute}),
		fetcher.RetryPolicy{
			MaxRetries:     cfg.Fetch.MaxRetries,
			Interval:       cfg.Fetch.RetryInterval,
			RetryableCodes: cfg.Fetch.RetryableCodes,
		},
		logger,
	)

	total := len(categories) * len(platforms)
	tracker := a.Tracker()
	tracker.SetTotal(total)
	progress, _ := cmd.Flags().GetBool("progress")
	var bar *pb.ProgressBar
	if progress {
		bar = pb.Simple.New(total).SetWriter(cmd.ErrOrStderr()).Start()
	}

	logger.Info("starting crawl error export",
		zap.String("property", propertyURI),
		zap.Int("categories", len(categories)),
		zap.Int("platforms", len(platforms)),
		zap.String("accumulation", string(mode)),
	)
	pipeline := report.NewPipeline(f, mode, logger, report.WithProgress(func(searchconsole.ReportRequest) {
		if bar != nil {
			bar.Increment()
		}
		tracker.Advance()
	}))
	reports := pipeline.Run(ctx, propertyURI, categories, platforms)
	if bar != nil {
		bar.Finish()
	}

	// Tables gathered before an interrupt are still written.
	writeCtx := context.WithoutCancel(ctx)
	exporter := a.Exporter()
	for _, r := range reports {
		name := output.CrawlErrorsName(cfg.Report.FilePrefix, string(r.Category), a.Clock().Now())
		if _, err := exporter.WriteTable(writeCtx, output.KindCrawlErrors, name, report.Records(r.Rows)); err != nil {
			return fmt.Errorf("write %s table: %w", r.Category, err)
		}
		logger.Info("completed category",
			zap.String("category", string(r.Category)),
			zap.Int("rows", r.DataRows()),
			zap.Int("failed_fetches", r.FailedFetches),
		)
	}
	tracker.Finish()

	report.PrintSummary(cmd.OutOrStdout(), propertyURI, reports)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crawl error export interrupted: %w", err)
	}
	return nil
}

// parseList validates configured names, falling back to defaults when none are given.
func parseList[T ~string](names []string, parse func(string) (T, error), defaults []T) ([]T, error) {
	var out []T
	for _, n := range names {
		if n == "" {
			continue
		}
		v, err := parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return append([]T(nil), defaults...), nil
	}
	return out, nil
}
