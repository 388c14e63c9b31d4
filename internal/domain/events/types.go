// Package events defines all event types emitted by the session runtime.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Clock events
	EventTypeClockTick    EventType = "clock_tick"
	EventTypeClockExpired EventType = "clock_expired"

	// Session lifecycle events
	EventTypeSessionStarted   EventType = "session_started"
	EventTypeSessionPaused    EventType = "session_paused"
	EventTypeSessionResumed   EventType = "session_resumed"
	EventTypeSessionSubmitted EventType = "session_submitted"
	EventTypeSubmitFailed     EventType = "submit_failed"
	EventTypeSessionClosed    EventType = "session_closed"

	// AI interaction events
	EventTypeBudgetUpdated   EventType = "budget_updated"
	EventTypeAIMessage       EventType = "ai_message"
	EventTypeExecutionResult EventType = "execution_result"

	// Proctoring events
	EventTypeProctoringFlagged EventType = "proctoring_flagged"
	EventTypeProctoringCleared EventType = "proctoring_cleared"

	// Repository events
	EventTypeFileSelected EventType = "file_selected"
	EventTypeFileChanged  EventType = "file_changed"

	// Terminal events (terminal-mode sessions)
	EventTypeTerminalOutput EventType = "terminal_output"
	EventTypeTerminalError  EventType = "terminal_error"
	EventTypeTerminalExit   EventType = "terminal_exit"

	// Connection events
	EventTypeSnapshot  EventType = "snapshot"
	EventTypeHeartbeat EventType = "heartbeat"
	EventTypeError     EventType = "error"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)

	// GetSessionID returns the session ID (may be empty for daemon-wide events).
	GetSessionID() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType EventType   `json:"event"`
	EventTime time.Time   `json:"timestamp"`
	SessionID string      `json:"session_id,omitempty"`
	Payload   interface{} `json:"payload"`
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GetSessionID returns the session ID.
func (e *BaseEvent) GetSessionID() string {
	return e.SessionID
}

// New creates a new base event with the given type and payload.
func New(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewForSession creates a new event bound to a session.
func NewForSession(eventType EventType, sessionID string, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		SessionID: sessionID,
		Payload:   payload,
	}
}
