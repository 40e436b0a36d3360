package publisher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToNoop(t *testing.T) {
	t.Parallel()

	pub, closeFn, err := New(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, pub)
	assert.NoError(t, closeFn())

	id, err := pub.Publish(context.Background(), "kind", "payload")
	assert.NoError(t, err)
	assert.Empty(t, id)
}

func TestNewValidatesPubSub(t *testing.T) {
	t.Parallel()

	_, _, err := New(context.Background(), Config{Provider: ProviderPubSub, ProjectID: "p"}, nil)
	assert.Error(t, err)

	_, _, err = New(context.Background(), Config{Provider: "kafka"}, nil)
	assert.Error(t, err)
}
