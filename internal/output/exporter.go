// Package output writes finished tables to the configured blob store and
// announces each one through the configured publisher.
package output

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gsc-crawl-errors/internal/clock"
	"github.com/JakeFAU/gsc-crawl-errors/internal/hash/sha256"
	"github.com/JakeFAU/gsc-crawl-errors/internal/metrics"
	"github.com/JakeFAU/gsc-crawl-errors/internal/publisher"
	"github.com/JakeFAU/gsc-crawl-errors/internal/storage"
	"github.com/JakeFAU/gsc-crawl-errors/internal/tabular"
)

// Table kinds carried on events and metrics.
const (
	KindCrawlErrors        = "crawl_errors"
	KindRedirectsMatched   = "redirects_matched"
	KindRedirectsUnmatched = "redirects_unmatched"
)

// Event describes one written table.
type Event struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	URI       string    `json:"uri"`
	Rows      int       `json:"rows"`
	SHA256    string    `json:"sha256"`
	Timestamp time.Time `json:"timestamp"`
}

// Exporter ties encoding, storage and notification together for one run.
type Exporter struct {
	store  storage.BlobStore
	pub    publisher.Publisher
	hasher *sha256.Hasher
	runID  string
	clock  clock.Clock
	logger *zap.Logger
}

// NewExporter builds an Exporter. A nil publisher disables notifications.
func NewExporter(store storage.BlobStore, pub publisher.Publisher, runID string, clk clock.Clock, logger *zap.Logger) *Exporter {
	if pub == nil {
		pub = publisher.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		store:  store,
		pub:    pub,
		hasher: sha256.New(),
		runID:  runID,
		clock:  clk,
		logger: logger,
	}
}

// RunID returns the identifier stamped on every event.
func (e *Exporter) RunID() string {
	return e.runID
}

// WriteTable encodes rows, stores them under name and publishes an Event.
// Storage errors are returned; publish errors are only logged.
func (e *Exporter) WriteTable(ctx context.Context, kind, name string, rows [][]string) (string, error) {
	body, err := tabular.Encode(rows)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	uri, err := e.store.PutObject(ctx, name, tabular.ContentType, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	metrics.ObserveTableWritten(kind)
	e.logger.Info("table written",
		zap.String("kind", kind),
		zap.String("uri", uri),
		zap.Int("rows", len(rows)),
	)

	event := Event{
		RunID:     e.runID,
		Kind:      kind,
		Name:      name,
		URI:       uri,
		Rows:      len(rows),
		SHA256:    e.hasher.Hash(body),
		Timestamp: e.clock.Now(),
	}
	if _, err := e.pub.Publish(ctx, kind, event); err != nil {
		metrics.ObserveNotificationError()
		e.logger.Warn("failed to publish table event", zap.String("uri", uri), zap.Error(err))
	}
	return uri, nil
}
