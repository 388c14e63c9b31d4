// Package hub implements the central event fan-out for the session runtime.
// One daemon hosts several concurrent candidate sessions; subscribers are
// usually scoped to a single session via SessionFilter.
package hub

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/domain/ports"
)

// eventBuffer sizes the publish channel. Clock ticks arrive at 1 Hz per
// session but terminal output can burst, so the buffer is generous.
const eventBuffer = 512

// Hub fans events out to every registered subscriber. A subscriber whose
// Send fails is dropped; slow consumers fail their own Send rather than
// stalling the dispatch loop.
type Hub struct {
	events chan events.Event
	add    chan ports.Subscriber
	remove chan string
	done   chan struct{}

	mu      sync.RWMutex
	subs    map[string]ports.Subscriber
	running bool
}

// New creates a hub. It does not dispatch until Start is called.
func New() *Hub {
	return &Hub{
		events: make(chan events.Event, eventBuffer),
		add:    make(chan ports.Subscriber),
		remove: make(chan string),
		done:   make(chan struct{}),
		subs:   make(map[string]ports.Subscriber),
	}
}

// Start launches the dispatch loop. Calling Start twice is a no-op.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	h.running = true
	go h.dispatch()
	log.Debug().Msg("event hub started")
	return nil
}

// Stop ends dispatch and closes every remaining subscriber.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	close(h.done)
	for id, sub := range h.subs {
		_ = sub.Close()
		delete(h.subs, id)
	}
	h.mu.Unlock()

	log.Debug().Msg("event hub stopped")
	return nil
}

func (h *Hub) dispatch() {
	for {
		select {
		case <-h.done:
			return

		case sub := <-h.add:
			h.mu.Lock()
			h.subs[sub.ID()] = sub
			h.mu.Unlock()
			log.Debug().Str("subscriber_id", sub.ID()).Msg("subscriber registered")

		case id := <-h.remove:
			h.dropSubscriber(id)

		case ev := <-h.events:
			h.deliver(ev)
		}
	}
}

// deliver sends one event to all subscribers and drops the ones that fail.
func (h *Hub) deliver(ev events.Event) {
	var failed []string

	h.mu.RLock()
	for id, sub := range h.subs {
		if err := sub.Send(ev); err != nil {
			log.Warn().Str("subscriber_id", id).Err(err).Msg("dropping failed subscriber")
			failed = append(failed, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range failed {
		h.dropSubscriber(id)
	}
}

func (h *Hub) dropSubscriber(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	// Close off the dispatch goroutine: a subscriber's close hook may call
	// back into Unsubscribe, whose channel only this goroutine services.
	go func() { _ = sub.Close() }()
	log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")
}

// Publish enqueues an event for dispatch. It never blocks; when the queue
// is full the event is dropped with a warning.
func (h *Hub) Publish(ev events.Event) {
	select {
	case h.events <- ev:
	default:
		log.Warn().
			Str("event_type", string(ev.Type())).
			Str("session_id", ev.GetSessionID()).
			Msg("event dropped: hub queue full")
	}
}

// Subscribe registers a subscriber. No-op after Stop.
func (h *Hub) Subscribe(sub ports.Subscriber) {
	select {
	case h.add <- sub:
	case <-h.done:
	}
}

// Unsubscribe removes and closes a subscriber by ID. No-op after Stop.
func (h *Hub) Unsubscribe(id string) {
	select {
	case h.remove <- id:
	case <-h.done:
	}
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// IsRunning reports whether the dispatch loop is live.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
