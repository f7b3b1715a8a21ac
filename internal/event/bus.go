package event

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultHistoryLimit is the number of events retained for audit when no
// explicit limit is configured.
const DefaultHistoryLimit = 1000

// Handler is a function that handles an event.
type Handler func(Event)

// subscription represents a registered event handler.
type subscription struct {
	id        string
	eventType string
	handler   Handler
}

// Bus is a synchronous pub-sub event bus with a bounded history buffer.
// Handlers are invoked in subscription order on the publisher's
// goroutine; a panicking handler is recovered and reported as a
// HandlerErrorEvent so publishing never fails.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // eventType -> subscriptions
	history       []Event                   // FIFO, oldest first
	historyLimit  int
	nextID        atomic.Uint64
}

// NewBus creates a new event bus with the default history limit.
func NewBus() *Bus {
	return NewBusWithHistory(DefaultHistoryLimit)
}

// NewBusWithHistory creates a new event bus retaining at most limit
// events. A non-positive limit disables history retention.
func NewBusWithHistory(limit int) *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
		historyLimit:  limit,
	}
}

// Subscribe registers a handler for a specific event type.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("sub-%d", b.nextID.Add(1))
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
	})
	return id
}

// SubscribeAll registers a handler for all event types.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe("*", handler)
}

// Unsubscribe removes a subscription by ID. It is idempotent: removing
// an unknown or already-removed ID returns false without error.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				b.subscriptions[eventType] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish dispatches an event to all registered handlers, then appends
// it to the history buffer. Specific handlers (subscribed to this event
// type) are called first, followed by wildcard handlers. Within each
// group, handlers are called in registration order.
//
// A handler panic is recovered and reported by publishing a
// HandlerErrorEvent; it is never propagated to the publisher. Panics
// from handlers of HandlerErrorEvent itself are swallowed to avoid
// recursion.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	eventType := e.EventType()

	specificSubs := make([]subscription, len(b.subscriptions[eventType]))
	copy(specificSubs, b.subscriptions[eventType])

	wildcardSubs := make([]subscription, len(b.subscriptions["*"]))
	copy(wildcardSubs, b.subscriptions["*"])

	b.mu.RUnlock()

	for _, sub := range specificSubs {
		b.safeCall(sub.handler, e)
	}
	for _, sub := range wildcardSubs {
		b.safeCall(sub.handler, e)
	}

	b.record(e)
}

// History returns a snapshot of retained events, oldest first. An empty
// eventType returns all retained events; otherwise only events of that
// type are included. The returned slice is a copy and safe to modify.
func (b *Bus) History(eventType string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if eventType == "" {
		out := make([]Event, len(b.history))
		copy(out, b.history)
		return out
	}

	var out []Event
	for _, e := range b.history {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// HistoryForRun returns a snapshot of retained events for one run,
// oldest first.
func (b *Bus) HistoryForRun(runID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, e := range b.history {
		if e.RunID() == runID {
			out = append(out, e)
		}
	}
	return out
}

// HistoryLen returns the number of events currently retained.
func (b *Bus) HistoryLen() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.history)
}

// Clear removes all subscriptions and retained history.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string][]subscription)
	b.history = nil
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}

// record appends an event to the bounded history, evicting the oldest
// entry when the buffer is full.
func (b *Bus) record(e Event) {
	if b.historyLimit <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, e)
	if len(b.history) > b.historyLimit {
		// Copy down rather than re-slice so the evicted event is
		// released for garbage collection.
		n := copy(b.history, b.history[len(b.history)-b.historyLimit:])
		b.history = b.history[:n]
	}
}

// safeCall invokes a handler and recovers from any panics, surfacing
// them as HandlerErrorEvents.
func (b *Bus) safeCall(handler Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			if e.EventType() == TypeHandlerError {
				// A handler-error handler panicked; stop here.
				return
			}
			b.Publish(NewHandlerErrorEvent(e.RunID(), e.EventType(), fmt.Sprint(r)))
		}
	}()
	handler(e)
}
