package hub

import (
	"sync"

	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/domain/ports"
)

// SessionFilter wraps a subscriber and forwards only events belonging to one
// session. Events without a session ID (daemon-wide events like heartbeats)
// are always forwarded. A filter with an empty session ID forwards everything,
// which is what supervisor/journal subscribers use.
type SessionFilter struct {
	inner     ports.Subscriber
	sessionID string
}

// NewSessionFilter creates a filter scoped to the given session ID.
func NewSessionFilter(inner ports.Subscriber, sessionID string) *SessionFilter {
	return &SessionFilter{
		inner:     inner,
		sessionID: sessionID,
	}
}

// ID returns the wrapped subscriber's identifier.
func (f *SessionFilter) ID() string {
	return f.inner.ID()
}

// Send forwards the event if it belongs to the filtered session.
func (f *SessionFilter) Send(event events.Event) error {
	if f.sessionID != "" {
		if sid := event.GetSessionID(); sid != "" && sid != f.sessionID {
			return nil
		}
	}
	return f.inner.Send(event)
}

// Close closes the wrapped subscriber.
func (f *SessionFilter) Close() error {
	return f.inner.Close()
}

// Done returns the wrapped subscriber's done channel.
func (f *SessionFilter) Done() <-chan struct{} {
	return f.inner.Done()
}

var _ ports.Subscriber = (*SessionFilter)(nil)

// ChannelSubscriber is a subscriber that sends events to a channel.
type ChannelSubscriber struct {
	id     string
	send   chan events.Event
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewChannelSubscriber creates a new channel-based subscriber.
func NewChannelSubscriber(id string, bufferSize int) *ChannelSubscriber {
	return &ChannelSubscriber{
		id:   id,
		send: make(chan events.Event, bufferSize),
		done: make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *ChannelSubscriber) ID() string {
	return s.id
}

// Send sends an event to the subscriber. A full channel counts as a failure
// so the hub drops subscribers that stop draining.
func (s *ChannelSubscriber) Send(event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSubscriberClosed
	}

	select {
	case s.send <- event:
		return nil
	default:
		return domain.ErrSubscriberClosed
	}
}

// Close closes the subscriber.
func (s *ChannelSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.send)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *ChannelSubscriber) Done() <-chan struct{} {
	return s.done
}

// Events returns the channel to receive events from.
func (s *ChannelSubscriber) Events() <-chan events.Event {
	return s.send
}

var _ ports.Subscriber = (*ChannelSubscriber)(nil)

// FuncSubscriber invokes a callback for every event. The audit journal uses
// it to persist integrity-relevant events.
type FuncSubscriber struct {
	id     string
	fn     func(events.Event) error
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewFuncSubscriber creates a subscriber backed by a callback.
func NewFuncSubscriber(id string, fn func(events.Event) error) *FuncSubscriber {
	return &FuncSubscriber{
		id:   id,
		fn:   fn,
		done: make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *FuncSubscriber) ID() string {
	return s.id
}

// Send invokes the callback.
func (s *FuncSubscriber) Send(event events.Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSubscriberClosed
	}
	s.mu.Unlock()
	return s.fn(event)
}

// Close closes the subscriber.
func (s *FuncSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *FuncSubscriber) Done() <-chan struct{} {
	return s.done
}

var _ ports.Subscriber = (*FuncSubscriber)(nil)
