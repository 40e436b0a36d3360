package output

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/gsc-crawl-errors/internal/clock"
	"github.com/JakeFAU/gsc-crawl-errors/internal/hash/sha256"
	pubmemory "github.com/JakeFAU/gsc-crawl-errors/internal/publisher/memory"
	"github.com/JakeFAU/gsc-crawl-errors/internal/storage/memory"
	"github.com/JakeFAU/gsc-crawl-errors/internal/tabular"
)

var runAt = time.Date(2018, 1, 2, 3, 4, 5, 0, time.UTC)

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func TestWriteTableStoresAndPublishes(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	pub := pubmemory.New()
	exp := NewExporter(store, pub, "run-1", clock.Fixed(runAt), nil)

	rows := [][]string{{"pageUrl", "platform"}, {"a", "web"}}
	uri, err := exp.WriteTable(context.Background(), KindCrawlErrors, "notFound.csv", rows)
	require.NoError(t, err)
	assert.Equal(t, "memory://notFound.csv", uri)

	body, ok := store.Object("notFound.csv")
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(body, tabular.BOM))
	decoded, err := tabular.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, rows, decoded)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, KindCrawlErrors, msgs[0].Topic)
	assert.Equal(t, Event{
		RunID:     "run-1",
		Kind:      KindCrawlErrors,
		Name:      "notFound.csv",
		URI:       uri,
		Rows:      2,
		SHA256:    sha256.New().Hash(body),
		Timestamp: runAt,
	}, msgs[0].Payload)
	assert.Equal(t, "run-1", exp.RunID())
}

func TestWriteTablePublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	pub := pubmemory.New()
	pub.FailNext(errors.New("topic gone"))
	exp := NewExporter(memory.NewBlobStore(), pub, "run-2", clock.Fixed(runAt), zap.New(core))

	uri, err := exp.WriteTable(context.Background(), KindRedirectsMatched, "wp_redirects_x.csv", [][]string{{"/old/path", "/new/path"}})
	require.NoError(t, err)
	assert.NotEmpty(t, uri)
	assert.Equal(t, 1, logs.FilterMessage("failed to publish table event").Len())
}

func TestWriteTableStoreFailure(t *testing.T) {
	t.Parallel()

	pub := pubmemory.New()
	exp := NewExporter(failingStore{}, pub, "run-3", clock.Fixed(runAt), nil)
	_, err := exp.WriteTable(context.Background(), KindCrawlErrors, "x.csv", [][]string{{"a"}})
	require.Error(t, err)
	assert.Empty(t, pub.Messages())
}

func TestNilPublisherDisablesNotifications(t *testing.T) {
	t.Parallel()

	exp := NewExporter(memory.NewBlobStore(), nil, "run-4", clock.Fixed(runAt), nil)
	_, err := exp.WriteTable(context.Background(), KindCrawlErrors, "x.csv", [][]string{{"a"}})
	assert.NoError(t, err)
}

func TestNames(t *testing.T) {
	t.Parallel()

	local := time.FixedZone("EST", -5*3600)
	assert.Equal(t, "wp_notFound_20180102T030405Z.csv", CrawlErrorsName("wp_", "notFound", runAt.In(local)))
	assert.Equal(t, "soft404_20180102T030405Z.csv", CrawlErrorsName("", "soft404", runAt))

	matched, unmatched := RedirectNames("/tmp/exports/notFound_20180102T030405Z.csv")
	assert.Equal(t, "wp_redirects_notFound_20180102T030405Z.csv", matched)
	assert.Equal(t, "wp_redirects_nomatch_notFound_20180102T030405Z.csv", unmatched)

	matched, _ = RedirectNames("legacy.txt")
	assert.Equal(t, "wp_redirects_legacy.txt.csv", matched)
}
