package memory

import (
	"context"
	"sync"

	"github.com/aescanero/chatrelay/pkg/ports"
	"go.uber.org/zap"
)

// UpdateBus implements ports.UpdateBus with in-process handlers.
// Handlers run synchronously in the publisher's goroutine, so updates of
// a thread reach subscribers in publish order.
type UpdateBus struct {
	subscribers map[uint64]ports.UpdateHandler
	nextID      uint64
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewUpdateBus creates a new in-memory update bus
func NewUpdateBus(logger *zap.Logger) *UpdateBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpdateBus{
		subscribers: make(map[uint64]ports.UpdateHandler),
		logger:      logger,
	}
}

// Publish delivers an update to all subscribers
func (b *UpdateBus) Publish(ctx context.Context, update ports.Update) error {
	b.mu.RLock()
	handlers := make([]ports.UpdateHandler, 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, update); err != nil {
			b.logger.Warn("update handler error",
				zap.String("thread_id", update.ThreadID),
				zap.Error(err))
		}
	}

	return nil
}

// Subscribe registers a handler until ctx is done
func (b *UpdateBus) Subscribe(ctx context.Context, handler ports.UpdateHandler) error {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = handler
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}()

	return nil
}

// Close drops all subscribers
func (b *UpdateBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = make(map[uint64]ports.UpdateHandler)
	return nil
}
