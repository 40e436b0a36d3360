// Package publisher announces finished output tables to downstream consumers.
package publisher

import (
	"context"
	"fmt"

	gpubsub "cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/gsc-crawl-errors/internal/publisher/pubsub"
)

// Publisher sends a JSON-encodable payload to a topic and returns a message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Provider names accepted by New.
const (
	ProviderNoop   = "noop"
	ProviderPubSub = "pubsub"
)

// Config selects the notification backend.
type Config struct {
	Provider  string
	ProjectID string
	TopicID   string
}

// Noop drops every message.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, string, any) (string, error) { return "", nil }

// New returns the configured Publisher and a close function that flushes it.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Publisher, func() error, error) {
	noop := func() error { return nil }
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case ProviderNoop, "":
		return Noop{}, noop, nil
	case ProviderPubSub:
		if cfg.ProjectID == "" || cfg.TopicID == "" {
			return nil, noop, fmt.Errorf("pubsub notifications need project_id and topic_id")
		}
		client, err := gpubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, noop, fmt.Errorf("create pubsub client: %w", err)
		}
		pub := pubsub.New(client.Topic(cfg.TopicID))
		logger.Info("publishing table notifications",
			zap.String("project_id", cfg.ProjectID),
			zap.String("topic_id", cfg.TopicID),
		)
		closeFn := func() error {
			pub.Stop()
			return client.Close()
		}
		return pub, closeFn, nil
	default:
		return nil, noop, fmt.Errorf("unknown notify provider %q", cfg.Provider)
	}
}
