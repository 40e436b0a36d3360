package redirect

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/gsc-crawl-errors/internal/metrics"
)

// MatchedHeader heads the matched table.
var MatchedHeader = []string{"/old/path", "/new/path"}

// Result partitions the input rows by resolution outcome.
type Result struct {
	// Matched starts with MatchedHeader, followed by ["/"+source, destination] rows.
	Matched [][]string
	// Unmatched holds single-field [source] rows.
	Unmatched [][]string
}

// MatchedCount is the number of matched rows, excluding the header.
func (r Result) MatchedCount() int {
	return len(r.Matched) - 1
}

// Resolver runs input rows through a Table.
type Resolver struct {
	table    *Table
	logger   *zap.Logger
	progress func()
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithProgress registers a callback invoked after each row is resolved.
func WithProgress(fn func()) ResolverOption {
	return func(r *Resolver) {
		r.progress = fn
	}
}

// NewResolver constructs a Resolver over table.
func NewResolver(table *Table, logger *zap.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{table: table, logger: logger, progress: func() {}}
	for _, opt := range opts {
		opt(r)
	}
	if r.progress == nil {
		r.progress = func() {}
	}
	return r
}

// Run resolves the first field of every row. Each row lands in exactly one of
// the two outputs and both keep input order.
func (r *Resolver) Run(rows [][]string) Result {
	res := Result{
		Matched:   [][]string{append([]string(nil), MatchedHeader...)},
		Unmatched: make([][]string, 0),
	}
	for _, row := range rows {
		source := ""
		if len(row) > 0 {
			source = row[0]
		}
		dest, ok := r.table.Resolve(source)
		r.progress()
		if !ok {
			metrics.ObserveRedirect("unmatched")
			r.logger.Debug("no redirect found", zap.String("url", source))
			res.Unmatched = append(res.Unmatched, []string{source})
			continue
		}
		metrics.ObserveRedirect("matched")
		r.logger.Debug("redirect found", zap.String("url", source), zap.String("destination", dest))
		res.Matched = append(res.Matched, []string{"/" + source, dest})
	}
	return res
}
