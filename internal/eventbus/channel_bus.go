package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChannelBus is a Bus implementation backed by a buffered channel and a
// small worker pool.
type ChannelBus struct {
	subscribers    map[EventType]map[string]Handler
	allSubscribers map[string]Handler

	eventChan chan eventWithContext
	done      chan struct{}
	closed    bool

	wg    sync.WaitGroup
	mutex sync.RWMutex

	bufferSize  int
	workerCount int
	logger      *zap.Logger
}

type eventWithContext struct {
	ctx   context.Context
	event Event
}

// ChannelBusOption configures a ChannelBus.
type ChannelBusOption func(*ChannelBus)

// WithBufferSize sets the event channel buffer size.
func WithBufferSize(size int) ChannelBusOption {
	return func(b *ChannelBus) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithWorkerCount sets the number of event processing workers.
func WithWorkerCount(count int) ChannelBusOption {
	return func(b *ChannelBus) {
		if count > 0 {
			b.workerCount = count
		}
	}
}

// WithLogger sets the logger used for handler failures.
func WithLogger(logger *zap.Logger) ChannelBusOption {
	return func(b *ChannelBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewChannelBus creates a channel-based event bus and starts its workers.
func NewChannelBus(options ...ChannelBusOption) *ChannelBus {
	b := &ChannelBus{
		subscribers:    make(map[EventType]map[string]Handler),
		allSubscribers: make(map[string]Handler),
		done:           make(chan struct{}),
		bufferSize:     100,
		workerCount:    2,
		logger:         zap.NewNop(),
	}
	for _, option := range options {
		option(b)
	}

	b.eventChan = make(chan eventWithContext, b.bufferSize)
	for i := 0; i < b.workerCount; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *ChannelBus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case evt := <-b.eventChan:
			b.dispatch(evt)
		}
	}
}

func (b *ChannelBus) dispatch(evt eventWithContext) {
	if evt.ctx.Err() != nil {
		return
	}

	// Copy handler maps so handlers can subscribe/unsubscribe without
	// deadlocking against the dispatch path.
	b.mutex.RLock()
	handlers := make([]Handler, 0, len(b.allSubscribers))
	if typed, exists := b.subscribers[evt.event.Type]; exists {
		for _, handler := range typed {
			handlers = append(handlers, handler)
		}
	}
	for _, handler := range b.allSubscribers {
		handlers = append(handlers, handler)
	}
	b.mutex.RUnlock()

	for _, handler := range handlers {
		if err := handler(evt.ctx, evt.event); err != nil {
			b.logger.Warn("event handler failed",
				zap.String("event_type", string(evt.event.Type)),
				zap.Error(err))
		}
	}
}

// Publish sends an event to all subscribers. Publishing on a closed bus or
// into a full buffer returns an error instead of blocking the caller.
func (b *ChannelBus) Publish(ctx context.Context, event Event) error {
	b.mutex.RLock()
	closed := b.closed
	b.mutex.RUnlock()
	if closed {
		return fmt.Errorf("event bus is closed")
	}

	select {
	case b.eventChan <- eventWithContext{ctx: ctx, event: event}:
		return nil
	default:
		return fmt.Errorf("event buffer full, dropping %s", event.Type)
	}
}

// Subscribe registers a handler for the given event types.
func (b *ChannelBus) Subscribe(eventTypes []EventType, handler Handler) (string, error) {
	if handler == nil {
		return "", fmt.Errorf("handler cannot be nil")
	}
	id := uuid.New().String()

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return "", fmt.Errorf("event bus is closed")
	}
	for _, eventType := range eventTypes {
		if b.subscribers[eventType] == nil {
			b.subscribers[eventType] = make(map[string]Handler)
		}
		b.subscribers[eventType][id] = handler
	}
	return id, nil
}

// SubscribeAll registers a handler for every event type.
func (b *ChannelBus) SubscribeAll(handler Handler) (string, error) {
	if handler == nil {
		return "", fmt.Errorf("handler cannot be nil")
	}
	id := uuid.New().String()

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return "", fmt.Errorf("event bus is closed")
	}
	b.allSubscribers[id] = handler
	return id, nil
}

// Unsubscribe removes a subscription by ID.
func (b *ChannelBus) Unsubscribe(subscriptionID string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	found := false
	for _, handlers := range b.subscribers {
		if _, ok := handlers[subscriptionID]; ok {
			delete(handlers, subscriptionID)
			found = true
		}
	}
	if _, ok := b.allSubscribers[subscriptionID]; ok {
		delete(b.allSubscribers, subscriptionID)
		found = true
	}
	if !found {
		return fmt.Errorf("subscription '%s' not found", subscriptionID)
	}
	return nil
}

// Close shuts down the bus and waits for in-flight dispatches to finish.
func (b *ChannelBus) Close() error {
	b.mutex.Lock()
	if b.closed {
		b.mutex.Unlock()
		return nil
	}
	b.closed = true
	b.mutex.Unlock()

	close(b.done)
	b.wg.Wait()
	return nil
}
