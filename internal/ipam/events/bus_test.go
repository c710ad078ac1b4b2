package events

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/logger"
)

func newTestBus(t *testing.T) *AuditBus {
	t.Helper()
	bus := NewAuditBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := newTestBus(t)

	var mu sync.Mutex
	var received []AuditEvent

	err := bus.Subscribe("allocation.created", func(_ context.Context, ev AuditEvent) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev)
		return nil
	})
	require.NoError(t, err)

	ctx := applogger.WithRequestID(context.Background(), "req-42")
	bus.Publish(ctx, "allocation.created", map[string]any{"vpc": "vpc-a"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "allocation.created", received[0].Name)
	assert.Equal(t, "req-42", received[0].RequestID)
	assert.Equal(t, "vpc-a", received[0].Fields["vpc"])
	assert.NotEmpty(t, received[0].ID)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestPublishDoesNotCrossEventNames(t *testing.T) {
	bus := newTestBus(t)

	var mu sync.Mutex
	count := 0

	err := bus.Subscribe("allocation.deleted", func(_ context.Context, _ AuditEvent) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	})
	require.NoError(t, err)

	bus.Publish(context.Background(), "allocation.created", nil)
	bus.Publish(context.Background(), "allocation.deleted", nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestFailingHandlerDoesNotPanicPublish(t *testing.T) {
	bus := newTestBus(t)

	err := bus.Subscribe("vpc.deleted", func(_ context.Context, _ AuditEvent) error {
		return assert.AnError
	})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), "vpc.deleted", map[string]any{"vpc": "vpc-a"})
	})
}

func TestClosedBusDropsPublishAndRejectsSubscribe(t *testing.T) {
	bus := newTestBus(t)

	delivered := false
	require.NoError(t, bus.Subscribe("allocation.created", func(_ context.Context, _ AuditEvent) error {
		delivered = true
		return nil
	}))

	require.NoError(t, bus.Close())

	bus.Publish(context.Background(), "allocation.created", nil)
	assert.False(t, delivered)

	err := bus.Subscribe("allocation.created", func(_ context.Context, _ AuditEvent) error { return nil })
	assert.Error(t, err)

	// double close is fine
	assert.NoError(t, bus.Close())
}
