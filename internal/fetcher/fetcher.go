// Package fetcher implements the rate-limited, retrying crawl error report fetch.
package fetcher

import (
	"context"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/gsc-crawl-errors/internal/metrics"
	"github.com/JakeFAU/gsc-crawl-errors/internal/searchconsole"
)

var tracer = otel.Tracer("github.com/JakeFAU/gsc-crawl-errors/internal/fetcher")

// RetryPolicy controls how API failures carrying a status code are retried.
type RetryPolicy struct {
	MaxRetries     int
	Interval       time.Duration
	RetryableCodes []int
}

// DefaultRetryPolicy retries 500 and 503 up to five times, four seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     5,
		Interval:       4 * time.Second,
		RetryableCodes: []int{500, 503},
	}
}

func (p RetryPolicy) retryable(code int) bool {
	return slices.Contains(p.RetryableCodes, code)
}

// Gate blocks until the next API call is permitted.
type Gate interface {
	Wait(ctx context.Context) error
}

// Sleeper pauses between retries; it returns early with an error when ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithSleeper replaces the retry sleep, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

// Fetcher wraps a searchconsole.Client with a shared rate gate and a fixed-interval retry loop.
type Fetcher struct {
	client searchconsole.Client
	gate   Gate
	policy RetryPolicy
	sleep  Sleeper
	logger *zap.Logger
}

// New constructs a Fetcher. A nil gate disables rate limiting.
func New(client searchconsole.Client, gate Gate, policy RetryPolicy, logger *zap.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	f := &Fetcher{
		client: client,
		gate:   gate,
		policy: policy,
		sleep:  sleepContext,
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch lists one page of samples for req. It is best effort: every failure,
// including exhausted retries and non-retryable errors, yields nil and is
// logged rather than returned.
func (f *Fetcher) Fetch(ctx context.Context, req searchconsole.ReportRequest) *searchconsole.SamplesPage {
	category, platform := string(req.Category), string(req.Platform)
	log := f.logger.With(zap.String("category", category), zap.String("platform", platform))

	ctx, span := tracer.Start(ctx, "fetcher.Fetch", trace.WithAttributes(
		attribute.String("gsc.category", category),
		attribute.String("gsc.platform", platform),
	))
	defer span.End()

	for attempt := 0; attempt <= f.policy.MaxRetries; attempt++ {
		if f.gate != nil {
			if err := f.gate.Wait(ctx); err != nil {
				log.Warn("rate limiter wait aborted", zap.Error(err))
				span.SetStatus(codes.Error, "rate limiter wait aborted")
				return nil
			}
		}

		page, err := f.client.ListCrawlErrorSamples(ctx, req)
		if err == nil {
			metrics.ObserveAPICall(req.PropertyURI, category, platform, metrics.OutcomeSuccess)
			log.Debug("crawl error samples fetched", zap.Int("attempt", attempt+1))
			span.SetAttributes(attribute.Int("gsc.attempts", attempt+1))
			return page
		}

		code, ok := searchconsole.StatusCode(err)
		if !ok || !f.policy.retryable(code) {
			metrics.ObserveAPICall(req.PropertyURI, category, platform, metrics.OutcomeFailed)
			log.Warn("crawl error fetch failed", zap.Int("status", code), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "non-retryable failure")
			return nil
		}
		metrics.ObserveAPICall(req.PropertyURI, category, platform, metrics.OutcomeRetryable)

		if attempt == f.policy.MaxRetries {
			break
		}
		metrics.ObserveRetry(category, platform)
		log.Info("retryable API status, waiting before retry",
			zap.Int("status", code),
			zap.Int("attempt", attempt+1),
			zap.Duration("interval", f.policy.Interval),
		)
		if err := f.sleep(ctx, f.policy.Interval); err != nil {
			log.Warn("retry wait aborted", zap.Error(err))
			span.SetStatus(codes.Error, "retry wait aborted")
			return nil
		}
	}

	log.Warn("crawl error fetch retries exhausted", zap.Int("max_retries", f.policy.MaxRetries))
	span.SetStatus(codes.Error, "retries exhausted")
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
