// Package eventbus provides in-process event dispatch for cache and
// orchestration activity.
package eventbus

import (
	"context"
	"time"
)

// EventType represents the type of an event.
type EventType string

// Standard event types
const (
	// Cache events
	EventCacheHit         EventType = "cache_hit"
	EventCacheMiss        EventType = "cache_miss"
	EventCacheRefresh     EventType = "cache_refresh"
	EventCacheInvalidated EventType = "cache_invalidated"

	// Hop execution events
	EventHopStarted   EventType = "hop_started"
	EventHopCompleted EventType = "hop_completed"
	EventHopFailed    EventType = "hop_failed"

	// Plan execution events
	EventPlanStarted   EventType = "plan_started"
	EventPlanCompleted EventType = "plan_completed"
	EventPlanFailed    EventType = "plan_failed"
)

// Handler is a function that handles events.
type Handler func(context.Context, Event) error

// Event is something that has happened within the toolkit.
type Event struct {
	Type      EventType
	Source    string
	Payload   any
	Metadata  map[string]any
	Timestamp time.Time
}

// NewEvent creates an Event stamped with the current time.
func NewEvent(eventType EventType, source string, payload any, metadata map[string]any) Event {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return Event{
		Type:      eventType,
		Source:    source,
		Payload:   payload,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}
}

// Bus is the central event dispatch system.
type Bus interface {
	// Publish sends an event to all subscribed handlers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for specific event types and returns a
	// subscription ID usable with Unsubscribe.
	Subscribe(eventTypes []EventType, handler Handler) (string, error)

	// SubscribeAll registers a handler for every event type.
	SubscribeAll(handler Handler) (string, error)

	// Unsubscribe removes a subscription by ID.
	Unsubscribe(subscriptionID string) error

	// Close shuts down the bus, draining resources.
	Close() error
}
