// Package testutil holds the shared fakes and assertion helpers used by
// sessiond package tests.
package testutil

import (
	"strings"
	"sync"
	"testing"

	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/domain/ports"
)

// MockSubscriber is a ports.Subscriber that records what it receives. A
// send error can be injected to exercise the hub's drop path.
type MockSubscriber struct {
	id string

	mu       sync.Mutex
	received []events.Event
	sendErr  error
	closed   bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewMockSubscriber creates a recording subscriber.
func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{
		id:   id,
		done: make(chan struct{}),
	}
}

func (m *MockSubscriber) ID() string { return m.id }

// Send records the event, or fails with the injected error.
func (m *MockSubscriber) Send(e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, e)
	return nil
}

// Close is idempotent and closes Done.
func (m *MockSubscriber) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
	})
	return nil
}

func (m *MockSubscriber) Done() <-chan struct{} { return m.done }

// Events returns a copy of everything received so far.
func (m *MockSubscriber) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Event, len(m.received))
	copy(out, m.received)
	return out
}

// EventCount returns how many events were received.
func (m *MockSubscriber) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

// IsClosed reports whether Close was called.
func (m *MockSubscriber) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetSendError makes every subsequent Send fail with err.
func (m *MockSubscriber) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

var _ ports.Subscriber = (*MockSubscriber)(nil)

// MockEventHub is a ports.EventHub whose Publish is synchronous, so tests
// can assert on published events immediately after the call that emits them.
type MockEventHub struct {
	mu        sync.Mutex
	published []events.Event
	subs      []ports.Subscriber
	started   bool
	stopped   bool
}

// NewMockEventHub creates an empty synchronous hub.
func NewMockEventHub() *MockEventHub {
	return &MockEventHub{}
}

func (m *MockEventHub) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *MockEventHub) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

// Publish records the event and delivers it to all subscribers inline.
func (m *MockEventHub) Publish(e events.Event) {
	m.mu.Lock()
	m.published = append(m.published, e)
	subs := make([]ports.Subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Send(e)
	}
}

func (m *MockEventHub) Subscribe(sub ports.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, sub)
}

func (m *MockEventHub) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.subs {
		if sub.ID() == id {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return
		}
	}
}

func (m *MockEventHub) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *MockEventHub) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && !m.stopped
}

// PublishedEvents returns a copy of every event published so far, in order.
func (m *MockEventHub) PublishedEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Event, len(m.published))
	copy(out, m.published)
	return out
}

// EventsOfType filters published events down to one type, in order.
func (m *MockEventHub) EventsOfType(t events.EventType) []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.Event
	for _, e := range m.published {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

var _ ports.EventHub = (*MockEventHub)(nil)

// AssertEqual fails the test when expected != actual.
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertTrue fails the test when the condition is false.
func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("%s: expected true, got false", msg)
	}
}

// AssertFalse fails the test when the condition is true.
func AssertFalse(t *testing.T, condition bool, msg string) {
	t.Helper()
	if condition {
		t.Errorf("%s: expected false, got true", msg)
	}
}

// AssertNoError fails the test when err is non-nil.
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError fails the test when err is nil.
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", msg)
	}
}

// AssertContains fails the test when s does not contain substr.
func AssertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: string %q does not contain %q", msg, s, substr)
	}
}
