package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
)

func TestPublishFansOutToSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan domain.Event, 2)
	handler := func(_ context.Context, event domain.Event) error {
		received <- event
		return nil
	}
	require.NoError(t, bus.Subscribe(ctx, "run.events", handler))
	require.NoError(t, bus.Subscribe(ctx, "run.events", handler))

	event := domain.Event{ID: "e1", Type: domain.EventTypeRunCompleted, RunID: "run-1"}
	require.NoError(t, bus.Publish(context.Background(), "run.events", event))

	for i := 0; i < 2; i++ {
		select {
		case got := <-received:
			assert.Equal(t, "e1", got.ID)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event delivery")
		}
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runEvents, cellEvents int64
	require.NoError(t, bus.Subscribe(ctx, "run.events", func(context.Context, domain.Event) error {
		atomic.AddInt64(&runEvents, 1)
		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx, "cell.events", func(context.Context, domain.Event) error {
		atomic.AddInt64(&cellEvents, 1)
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), "cell.events", domain.Event{ID: "c1"}))
	require.NoError(t, bus.Close())

	assert.Equal(t, int64(0), atomic.LoadInt64(&runEvents))
	assert.Equal(t, int64(1), atomic.LoadInt64(&cellEvents))
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var count int64
	require.NoError(t, bus.Subscribe(ctx, "run.events", func(context.Context, domain.Event) error {
		atomic.AddInt64(&count, 1)
		return nil
	}))

	cancel()
	// Unsubscription races the publish below; wait until the handler is gone.
	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subscribers["run.events"]) == 0
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "run.events", domain.Event{ID: "late"}))
	require.NoError(t, bus.Close())
	assert.Equal(t, int64(0), atomic.LoadInt64(&count))
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	assert.NoError(t, bus.Publish(context.Background(), "run.events", domain.Event{ID: "e1"}))
}
