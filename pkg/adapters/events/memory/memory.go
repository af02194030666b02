package memory

import (
	"context"
	"sync"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
	"github.com/sgttomas/chirality-semantic-framework/internal/ports"
)

// Bus implements EventBus with in-process handler fan-out. It is the
// default backend for single-node deployments and tests.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[int]ports.EventHandler
	nextToken   int
	wg          sync.WaitGroup
}

// NewBus creates a new in-memory event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]map[int]ports.EventHandler),
	}
}

// Publish delivers an event to all subscribers of a topic. Handlers run
// asynchronously; handler errors do not reach the publisher.
func (b *Bus) Publish(ctx context.Context, topic string, event domain.Event) error {
	b.mu.RLock()
	handlers := make([]ports.EventHandler, 0, len(b.subscribers[topic]))
	for _, h := range b.subscribers[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.wg.Add(1)
		go func(h ports.EventHandler) {
			defer b.wg.Done()
			_ = h(ctx, event)
		}(handler)
	}

	return nil
}

// Subscribe registers a handler for a topic until the context is done.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	b.mu.Lock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[int]ports.EventHandler)
	}
	token := b.nextToken
	b.nextToken++
	b.subscribers[topic][token] = handler
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers[topic], token)
		b.mu.Unlock()
	}()

	return nil
}

// Close drops all subscribers and waits for in-flight handlers.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.subscribers = make(map[string]map[int]ports.EventHandler)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
