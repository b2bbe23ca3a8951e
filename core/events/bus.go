// Package events provides the lifecycle event bus of the export layer.
// The pipeline publishes an event after each state transition; observers
// (metrics, logging, tests) subscribe by name or wildcard.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Well-known lifecycle event names.
const (
	ServiceExported   = "service.exported"
	ServiceUnexported = "service.unexported"
)

// Event is one lifecycle notification.
type Event struct {
	// Name is the event name, e.g. "service.exported".
	Name string

	// ServiceKey identifies the service ([group/]interface[:version]).
	ServiceKey string

	// URLs are the addresses the service is (or was) published under.
	URLs []string

	// At is when the transition happened.
	At time.Time
}

// Handler processes one event. Handler errors are logged, never propagated:
// lifecycle notifications are fire-and-forget.
type Handler func(ctx context.Context, event Event) error

// Bus is a synchronous publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates an event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event name. The name "*" matches
// every event.
func (b *Bus) Subscribe(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Publish delivers an event to all matching handlers, synchronously, in
// registration order.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	matched := append([]Handler(nil), b.handlers[event.Name]...)
	matched = append(matched, b.handlers["*"]...)
	b.mu.RUnlock()

	b.logger.Debug().
		Str("event", event.Name).
		Str("service", event.ServiceKey).
		Msg("lifecycle event")

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Str("service", event.ServiceKey).
				Msg("event handler error")
		}
	}
}

// HasSubscribers reports whether any handler would receive the event.
func (b *Bus) HasSubscribers(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name]) > 0 || len(b.handlers["*"]) > 0
}
