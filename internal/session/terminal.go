package session

import (
	"sync"

	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/domain/ports"
)

// TerminalEventType tags entries in the terminal event log.
type TerminalEventType string

const (
	TerminalOutput TerminalEventType = "output"
	TerminalError  TerminalEventType = "error"
	TerminalExit   TerminalEventType = "exit"
)

// TerminalEvent is one entry of the bridge's append-only log.
type TerminalEvent struct {
	Type    TerminalEventType `json:"type"`
	Data    string            `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Winsize is a terminal resize request.
type Winsize struct {
	Rows uint16 `json:"rows"`
	Cols uint16 `json:"cols"`
}

const (
	terminalInputBuffer  = 128
	terminalResizeBuffer = 8
)

// TerminalBridge carries the bidirectional terminal stream of a
// terminal-mode session. Inbound PTY events accumulate in an immutable,
// strictly ordered log that consumers read through a forward-only cursor,
// so a rescheduled consumer can always re-request from its last position
// without losing or duplicating events. Outbound keystrokes and resizes go
// through buffered channels drained by the PTY runner.
type TerminalBridge struct {
	sessionID string
	pause     *PauseController
	hub       ports.EventHub

	mu           sync.RWMutex
	log          []TerminalEvent
	disconnected bool
	exited       bool

	input  chan []byte
	resize chan Winsize
}

// NewTerminalBridge creates the bridge for a terminal-mode session.
func NewTerminalBridge(sessionID string, pause *PauseController, hub ports.EventHub) *TerminalBridge {
	return &TerminalBridge{
		sessionID: sessionID,
		pause:     pause,
		hub:       hub,
		input:     make(chan []byte, terminalInputBuffer),
		resize:    make(chan Winsize, terminalResizeBuffer),
	}
}

// Append adds an event to the log. Prior events are never mutated. The
// event is also fanned out on the hub for live subscribers; late or
// reconnecting consumers replay from the log instead.
func (b *TerminalBridge) Append(ev TerminalEvent) {
	b.mu.Lock()
	b.log = append(b.log, ev)
	if ev.Type == TerminalExit {
		b.exited = true
	}
	b.mu.Unlock()

	if b.hub == nil {
		return
	}
	switch ev.Type {
	case TerminalOutput:
		b.hub.Publish(events.NewTerminalOutputEvent(b.sessionID, ev.Data))
	case TerminalError:
		b.hub.Publish(events.NewTerminalErrorEvent(b.sessionID, ev.Message))
	case TerminalExit:
		b.hub.Publish(events.NewTerminalExitEvent(b.sessionID))
	}
}

// ConsumeFrom returns all events with index >= cursor and the cursor to use
// next. Calling it again with the same cursor returns the same events, so a
// rescheduled consumer never loses anything. Out-of-range cursors clamp.
func (b *TerminalBridge) ConsumeFrom(cursor int) ([]TerminalEvent, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(b.log) {
		cursor = len(b.log)
	}
	pending := b.log[cursor:]
	out := make([]TerminalEvent, len(pending))
	copy(out, pending)
	return out, len(b.log)
}

// Len returns the current log length, i.e. the cursor of a fully caught-up
// consumer.
func (b *TerminalBridge) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.log)
}

// SendInput forwards keystrokes to the PTY. Dropped with an error while the
// session is paused or the bridge is disconnected.
func (b *TerminalBridge) SendInput(data []byte) error {
	if b.pause != nil && b.pause.Paused() {
		return domain.ErrSessionPaused
	}
	b.mu.RLock()
	dead := b.disconnected || b.exited
	b.mu.RUnlock()
	if dead {
		return domain.ErrBridgeDisconnected
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case b.input <- buf:
		return nil
	default:
		return domain.ErrInputChannelFull
	}
}

// RequestResize forwards a resize request, best-effort: it never blocks and
// never waits for acknowledgement.
func (b *TerminalBridge) RequestResize(rows, cols uint16) {
	select {
	case b.resize <- Winsize{Rows: rows, Cols: cols}:
	default:
	}
}

// Input returns the channel the PTY runner drains for keystrokes.
func (b *TerminalBridge) Input() <-chan []byte {
	return b.input
}

// Resize returns the channel the PTY runner drains for resize requests.
func (b *TerminalBridge) Resize() <-chan Winsize {
	return b.resize
}

// SetDisconnected marks the transport state reported by the runner.
func (b *TerminalBridge) SetDisconnected(disconnected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = disconnected
}

// Disconnected returns whether input is currently rejected.
func (b *TerminalBridge) Disconnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.disconnected || b.exited
}
