package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/JakeFAU/gsc-crawl-errors/internal/searchconsole"
)

// scriptedClient returns the queued errors in order, then succeeds with page.
type scriptedClient struct {
	mu    sync.Mutex
	calls int
	errs  []error
	page  *searchconsole.SamplesPage
	reqs  []searchconsole.ReportRequest
}

func (c *scriptedClient) ListCrawlErrorSamples(
	_ context.Context,
	req searchconsole.ReportRequest,
) (*searchconsole.SamplesPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.reqs = append(c.reqs, req)
	if len(c.errs) > 0 {
		err := c.errs[0]
		if len(c.errs) > 1 {
			c.errs = c.errs[1:]
		} else if c.page != nil {
			c.errs = nil
		}
		return nil, err
	}
	return c.page, nil
}

type countingGate struct {
	waits int
	err   error
}

func (g *countingGate) Wait(context.Context) error {
	g.waits++
	return g.err
}

type recordingSleeper struct {
	slept []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return nil
}

func apiErr(code int) error {
	return fmt.Errorf("list crawl error samples: %w", &googleapi.Error{Code: code, Message: "boom"})
}

var testReq = searchconsole.ReportRequest{
	PropertyURI: "https://www.example.com/",
	Category:    searchconsole.CategoryNotFound,
	Platform:    searchconsole.PlatformWeb,
}

func TestFetchRetryCapReturnsNil(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{errs: []error{apiErr(503)}}
	gate := &countingGate{}
	sleeper := &recordingSleeper{}
	policy := RetryPolicy{MaxRetries: 2, Interval: 4 * time.Second, RetryableCodes: []int{500, 503}}

	f := New(client, gate, policy, zap.NewNop(), WithSleeper(sleeper.sleep))
	page := f.Fetch(context.Background(), testReq)

	assert.Nil(t, page)
	assert.Equal(t, 3, client.calls, "1 initial call + 2 retries")
	assert.Equal(t, 3, gate.waits, "every attempt passes through the rate gate")
	assert.Equal(t, []time.Duration{4 * time.Second, 4 * time.Second}, sleeper.slept, "fixed interval, no backoff")
}

func TestFetchRecoversAfterTransientErrors(t *testing.T) {
	t.Parallel()

	want := &searchconsole.SamplesPage{Samples: []*searchconsole.ErrorSample{{PageURL: "a"}}}
	client := &scriptedClient{errs: []error{apiErr(500), apiErr(503)}, page: want}
	sleeper := &recordingSleeper{}

	f := New(client, nil, DefaultRetryPolicy(), nil, WithSleeper(sleeper.sleep))
	got := f.Fetch(context.Background(), testReq)

	require.Same(t, want, got)
	assert.Equal(t, 3, client.calls)
	assert.Len(t, sleeper.slept, 2)
	for _, req := range client.reqs {
		assert.Equal(t, testReq, req)
	}
}

func TestFetchNonRetryableStatusAbortsImmediately(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{errs: []error{apiErr(404)}, page: &searchconsole.SamplesPage{}}
	sleeper := &recordingSleeper{}

	f := New(client, nil, DefaultRetryPolicy(), nil, WithSleeper(sleeper.sleep))
	assert.Nil(t, f.Fetch(context.Background(), testReq))
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, sleeper.slept)
}

func TestFetchErrorWithoutStatusAbortsImmediately(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{errs: []error{errors.New("connection reset")}, page: &searchconsole.SamplesPage{}}
	f := New(client, nil, DefaultRetryPolicy(), nil, WithSleeper((&recordingSleeper{}).sleep))

	assert.Nil(t, f.Fetch(context.Background(), testReq))
	assert.Equal(t, 1, client.calls)
}

func TestFetchZeroRetries(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{errs: []error{apiErr(500)}}
	f := New(client, nil, RetryPolicy{MaxRetries: 0, RetryableCodes: []int{500}}, nil,
		WithSleeper((&recordingSleeper{}).sleep))

	assert.Nil(t, f.Fetch(context.Background(), testReq))
	assert.Equal(t, 1, client.calls)
}

func TestFetchGateErrorReturnsNil(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{page: &searchconsole.SamplesPage{}}
	gate := &countingGate{err: context.Canceled}

	f := New(client, gate, DefaultRetryPolicy(), nil)
	assert.Nil(t, f.Fetch(context.Background(), testReq))
	assert.Equal(t, 0, client.calls)
}

func TestFetchCanceledDuringRetrySleep(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{errs: []error{apiErr(503)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(client, nil, RetryPolicy{MaxRetries: 3, Interval: time.Hour, RetryableCodes: []int{503}}, nil)
	start := time.Now()
	assert.Nil(t, f.Fetch(ctx, testReq))
	assert.Equal(t, 1, client.calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDefaultRetryPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	assert.Equal(t, 5, p.MaxRetries)
	assert.Equal(t, 4*time.Second, p.Interval)
	assert.True(t, p.retryable(500))
	assert.True(t, p.retryable(503))
	assert.False(t, p.retryable(502))
}

func TestFetchRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	client := &scriptedClient{errs: []error{&googleapi.Error{Code: 404}}}
	f := New(client, nil, DefaultRetryPolicy(), zap.NewNop())
	assert.Nil(t, f.Fetch(context.Background(), searchconsole.ReportRequest{
		PropertyURI: "https://example.com/",
		Category:    searchconsole.CategoryNotFound,
		Platform:    searchconsole.PlatformWeb,
	}))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "fetcher.Fetch", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}
