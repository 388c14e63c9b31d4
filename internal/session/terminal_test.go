package session

import (
	"testing"

	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/testutil"
)

func newBridgeFixture() (*TerminalBridge, *PauseController, *testutil.MockEventHub) {
	hub := testutil.NewMockEventHub()
	clock := NewClock(1800, nil, nil)
	pause := NewPauseController("s1", clock, hub)
	b := NewTerminalBridge("s1", pause, hub)
	b.SetDisconnected(false)
	return b, pause, hub
}

func TestTerminalBridge_CursorReplayIsStable(t *testing.T) {
	b, _, _ := newBridgeFixture()

	b.Append(TerminalEvent{Type: TerminalOutput, Data: "$ "})
	b.Append(TerminalEvent{Type: TerminalOutput, Data: "ls\n"})
	b.Append(TerminalEvent{Type: TerminalOutput, Data: "main.py\n"})

	evs, next := b.ConsumeFrom(0)
	testutil.AssertEqual(t, 3, len(evs), "full replay length")
	testutil.AssertEqual(t, 3, next, "cursor after full replay")

	// Re-requesting from the same cursor yields the same tail: no loss, no
	// duplication.
	again, _ := b.ConsumeFrom(1)
	testutil.AssertEqual(t, 2, len(again), "tail replay length")
	testutil.AssertEqual(t, "ls\n", again[0].Data, "tail starts at cursor")

	same, _ := b.ConsumeFrom(1)
	testutil.AssertEqual(t, again[0].Data, same[0].Data, "replay is repeatable")
}

func TestTerminalBridge_CursorClamped(t *testing.T) {
	b, _, _ := newBridgeFixture()
	b.Append(TerminalEvent{Type: TerminalOutput, Data: "x"})

	evs, next := b.ConsumeFrom(-5)
	testutil.AssertEqual(t, 1, len(evs), "negative cursor clamps to start")
	testutil.AssertEqual(t, 1, next, "cursor after clamp")

	evs, next = b.ConsumeFrom(99)
	testutil.AssertEqual(t, 0, len(evs), "cursor past end yields nothing")
	testutil.AssertEqual(t, 1, next, "cursor clamps to length")
}

func TestTerminalBridge_AppendPublishes(t *testing.T) {
	b, _, hub := newBridgeFixture()

	b.Append(TerminalEvent{Type: TerminalOutput, Data: "hello"})
	b.Append(TerminalEvent{Type: TerminalError, Message: "boom"})
	b.Append(TerminalEvent{Type: TerminalExit})

	testutil.AssertEqual(t, 1, len(hub.EventsOfType(events.EventTypeTerminalOutput)), "output events")
	testutil.AssertEqual(t, 1, len(hub.EventsOfType(events.EventTypeTerminalError)), "error events")
	testutil.AssertEqual(t, 1, len(hub.EventsOfType(events.EventTypeTerminalExit)), "exit events")
	testutil.AssertEqual(t, 3, b.Len(), "log length")
}

func TestTerminalBridge_InputGatedByPause(t *testing.T) {
	b, pause, _ := newBridgeFixture()

	pause.PauseFor(domain.PauseReasonClaudeOutage, "")
	if err := b.SendInput([]byte("ls\n")); err != domain.ErrSessionPaused {
		t.Fatalf("expected ErrSessionPaused, got %v", err)
	}

	pause.ResumeWith(nil)
	testutil.AssertNoError(t, b.SendInput([]byte("ls\n")), "input while active")

	select {
	case data := <-b.Input():
		testutil.AssertEqual(t, "ls\n", string(data), "queued input")
	default:
		t.Fatal("expected queued input")
	}
}

func TestTerminalBridge_InputRejectedWhenDisconnected(t *testing.T) {
	b, _, _ := newBridgeFixture()
	b.SetDisconnected(true)

	if err := b.SendInput([]byte("x")); err != domain.ErrBridgeDisconnected {
		t.Fatalf("expected ErrBridgeDisconnected, got %v", err)
	}
}

func TestTerminalBridge_InputBackpressure(t *testing.T) {
	b, _, _ := newBridgeFixture()

	for i := 0; i < terminalInputBuffer; i++ {
		testutil.AssertNoError(t, b.SendInput([]byte{'a'}), "fill buffer")
	}
	if err := b.SendInput([]byte{'a'}); err != domain.ErrInputChannelFull {
		t.Fatalf("expected ErrInputChannelFull, got %v", err)
	}
}

func TestTerminalBridge_ResizeNeverBlocks(t *testing.T) {
	b, _, _ := newBridgeFixture()

	// Far more requests than the buffer holds; extras are dropped silently.
	for i := 0; i < terminalResizeBuffer*3; i++ {
		b.RequestResize(40, 120)
	}

	ws := <-b.Resize()
	testutil.AssertEqual(t, uint16(40), ws.Rows, "rows")
	testutil.AssertEqual(t, uint16(120), ws.Cols, "cols")
}
