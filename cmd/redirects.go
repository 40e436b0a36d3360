package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gsc-crawl-errors/internal/config"
	"github.com/JakeFAU/gsc-crawl-errors/internal/output"
	"github.com/JakeFAU/gsc-crawl-errors/internal/redirect"
	"github.com/JakeFAU/gsc-crawl-errors/internal/tabular"
)

var redirectsBindings = []config.Binding{
	{Flag: "redirect-map", Key: "redirects.map_file"},
	{Flag: "output-location", Key: "redirects.output_dir"},
	{Flag: "skip-header", Key: "redirects.skip_input_header"},
}

func newRedirectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redirects <file>",
		Short: "Map a crawl error export to legacy redirect tables",
		Long: `Reads a crawl error export whose first column is the page URL and
resolves every URL against the redirect map. The first map rule whose
pattern occurs in the URL wins. Matched URLs are written to
wp_redirects_<name>.csv and the rest to wp_redirects_nomatch_<name>.csv.`,
		Args: cobra.ExactArgs(1),
		RunE: runRedirects,
	}
	cmd.Flags().String("redirect-map", "", "two-column pattern,destination mapping file with a header line")
	cmd.Flags().String("output-location", "", "directory (or object prefix) for the redirect tables")
	cmd.Flags().Bool("skip-header", false, "drop the first row of the input export")
	return cmd
}

func runRedirects(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, redirectsBindings, func(c config.Config) string { return c.Redirects.OutputDir })
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Config()
	logger := a.Logger()
	inputPath := args[0]

	table, err := loadRedirectMap(cfg.Redirects.MapFile, logger)
	if err != nil {
		return err
	}
	logger.Info("loaded redirect map", zap.String("file", cfg.Redirects.MapFile), zap.Int("rules", table.Len()))

	rows, err := readExport(inputPath)
	if err != nil {
		return err
	}
	if cfg.Redirects.SkipInputHeader && len(rows) > 0 {
		rows = rows[1:]
	}

	tracker := a.Tracker()
	tracker.SetTotal(len(rows))
	result := redirect.NewResolver(table, logger, redirect.WithProgress(tracker.Advance)).Run(rows)

	matchedName, unmatchedName := output.RedirectNames(inputPath)
	// A resolved run is written even if an interrupt arrives now.
	writeCtx := context.WithoutCancel(cmd.Context())
	exporter := a.Exporter()
	if _, err := exporter.WriteTable(writeCtx, output.KindRedirectsMatched, matchedName, result.Matched); err != nil {
		return fmt.Errorf("write matched redirects: %w", err)
	}
	if _, err := exporter.WriteTable(writeCtx, output.KindRedirectsUnmatched, unmatchedName, result.Unmatched); err != nil {
		return fmt.Errorf("write unmatched redirects: %w", err)
	}
	tracker.Finish()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d -> %s\n", color.GreenString("matched"), result.MatchedCount(), matchedName)
	fmt.Fprintf(out, "%s %d -> %s\n", color.YellowString("unmatched"), len(result.Unmatched), unmatchedName)
	return nil
}

func loadRedirectMap(path string, logger *zap.Logger) (*redirect.Table, error) {
	// #nosec G304 -- the map path is operator supplied.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open redirect map: %w", err)
	}
	defer func() { _ = f.Close() }()
	table, err := redirect.LoadTable(f, logger)
	if err != nil {
		return nil, fmt.Errorf("load redirect map %s: %w", path, err)
	}
	return table, nil
}

func readExport(path string) ([][]string, error) {
	// #nosec G304 -- the export path is operator supplied.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open crawl error export: %w", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := tabular.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("read crawl error export %s: %w", path, err)
	}
	return rows, nil
}
