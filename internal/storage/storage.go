// Package storage defines where output tables are written. Implementations
// live in the local, gcs and memory subpackages; New selects one from config.
package storage

import (
	"context"
	"fmt"
	"io"

	gcsapi "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/gsc-crawl-errors/internal/storage/gcs"
	"github.com/JakeFAU/gsc-crawl-errors/internal/storage/local"
	"github.com/JakeFAU/gsc-crawl-errors/internal/storage/memory"
)

// BlobStore writes one object and returns a URI for it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Provider names accepted by New.
const (
	ProviderLocal  = "local"
	ProviderGCS    = "gcs"
	ProviderMemory = "memory"
)

// Config selects and parameterizes a BlobStore.
type Config struct {
	Provider  string
	Dir       string
	GCSBucket string
}

// New builds the configured BlobStore. The returned close function releases
// any client the store holds and is never nil.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (BlobStore, func() error, error) {
	noop := func() error { return nil }
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case ProviderLocal, "":
		store, err := local.New(local.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, noop, fmt.Errorf("init local store: %w", err)
		}
		logger.Info("writing tables to local directory", zap.String("dir", cfg.Dir))
		return store, noop, nil
	case ProviderGCS:
		client, err := gcsapi.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("create GCS client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Dir})
		if err != nil {
			if cerr := client.Close(); cerr != nil {
				logger.Warn("close GCS client after init failure", zap.Error(cerr))
			}
			return nil, noop, fmt.Errorf("init GCS store: %w", err)
		}
		logger.Info("writing tables to GCS", zap.String("bucket", cfg.GCSBucket), zap.String("prefix", cfg.Dir))
		return store, client.Close, nil
	case ProviderMemory:
		logger.Info("keeping tables in memory; nothing will be persisted")
		return memory.NewBlobStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown output provider %q", cfg.Provider)
	}
}
