package report

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/gsc-crawl-errors/internal/metrics"
	"github.com/JakeFAU/gsc-crawl-errors/internal/searchconsole"
)

// Accumulation selects how platform tables combine into a category table.
type Accumulation string

const (
	// AccumulateConcatenate keeps one header and the data rows of every platform in order.
	AccumulateConcatenate Accumulation = "concatenate"
	// AccumulateLastPlatform keeps only the table of the last platform queried.
	AccumulateLastPlatform Accumulation = "last_platform"
)

// ParseAccumulation validates an accumulation mode name.
func ParseAccumulation(s string) (Accumulation, error) {
	switch Accumulation(s) {
	case AccumulateConcatenate, AccumulateLastPlatform:
		return Accumulation(s), nil
	default:
		return "", fmt.Errorf("unknown accumulation mode %q", s)
	}
}

// PageFetcher fetches one page of samples, returning nil on failure.
type PageFetcher interface {
	Fetch(ctx context.Context, req searchconsole.ReportRequest) *searchconsole.SamplesPage
}

// CategoryReport is the accumulated table for one category.
type CategoryReport struct {
	Category searchconsole.Category
	Rows     []CrawlErrorRow
	// FailedFetches counts platforms whose fetch produced no page.
	FailedFetches int
}

// DataRows is the number of rows after the header.
func (r CategoryReport) DataRows() int {
	if len(r.Rows) == 0 {
		return 0
	}
	return len(r.Rows) - 1
}

// ByCategory indexes reports by category.
func ByCategory(reports []CategoryReport) map[searchconsole.Category][]CrawlErrorRow {
	out := make(map[searchconsole.Category][]CrawlErrorRow, len(reports))
	for _, r := range reports {
		out[r.Category] = r.Rows
	}
	return out
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithProgress registers a callback invoked after each category/platform pair.
func WithProgress(fn func(req searchconsole.ReportRequest)) PipelineOption {
	return func(p *Pipeline) {
		p.onPair = fn
	}
}

// Pipeline fetches and flattens every category/platform combination.
type Pipeline struct {
	fetcher PageFetcher
	mode    Accumulation
	logger  *zap.Logger
	onPair  func(req searchconsole.ReportRequest)
}

// NewPipeline constructs a Pipeline. An empty mode selects AccumulateConcatenate.
func NewPipeline(fetcher PageFetcher, mode Accumulation, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	if mode == "" {
		mode = AccumulateConcatenate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{fetcher: fetcher, mode: mode, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run queries every platform for every category, categories outermost, and
// returns one report per category in iteration order. Empty lists fall back to
// the default enumerations. A failed fetch contributes no data rows for that
// pair and never stops the remaining pairs; only context cancellation does.
func (p *Pipeline) Run(
	ctx context.Context,
	propertyURI string,
	categories []searchconsole.Category,
	platforms []searchconsole.Platform,
) []CategoryReport {
	if len(categories) == 0 {
		categories = searchconsole.DefaultCategories
	}
	if len(platforms) == 0 {
		platforms = searchconsole.DefaultPlatforms
	}

	reports := make([]CategoryReport, 0, len(categories))
	index := make(map[searchconsole.Category]int, len(categories))

	pairs := searchconsole.Filters(
		searchconsole.Dimension{Name: "category", Values: toStrings(categories)},
		searchconsole.Dimension{Name: "platform", Values: toStrings(platforms)},
	)
	for set := range pairs {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("crawl report run interrupted", zap.Error(err))
			break
		}
		req := searchconsole.ReportRequest{
			PropertyURI: propertyURI,
			Category:    searchconsole.Category(set[0].Expression),
			Platform:    searchconsole.Platform(set[1].Expression),
		}

		i, ok := index[req.Category]
		if !ok {
			i = len(reports)
			index[req.Category] = i
			reports = append(reports, CategoryReport{Category: req.Category})
		}

		page := p.fetcher.Fetch(ctx, req)
		if page == nil {
			reports[i].FailedFetches++
		}
		rows := Flatten(page, req.Platform)
		metrics.ObserveRows(string(req.Category), len(rows)-1)
		p.logger.Info("parsed response",
			zap.String("category", string(req.Category)),
			zap.String("platform", string(req.Platform)),
			zap.Int("rows", len(rows)-1),
		)
		reports[i].Rows = p.accumulate(reports[i].Rows, rows)

		if p.onPair != nil {
			p.onPair(req)
		}
	}
	return reports
}

func (p *Pipeline) accumulate(current, rows []CrawlErrorRow) []CrawlErrorRow {
	if p.mode == AccumulateLastPlatform || len(current) == 0 {
		return rows
	}
	return append(current, rows[1:]...)
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
