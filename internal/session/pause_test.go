package session

import (
	"testing"

	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/testutil"
)

func newPauseFixture() (*PauseController, *Clock, *testutil.MockEventHub) {
	hub := testutil.NewMockEventHub()
	clock := NewClock(1800, nil, nil)
	return NewPauseController("s1", clock, hub), clock, hub
}

func TestPauseController_PauseFreezesClock(t *testing.T) {
	pc, clock, hub := newPauseFixture()

	pc.PauseFor(domain.PauseReasonClaudeOutage, "assistant unavailable")

	testutil.AssertTrue(t, pc.Paused(), "paused")
	testutil.AssertTrue(t, clock.Paused(), "clock paused")

	clock.Tick()
	testutil.AssertEqual(t, 1800, clock.Remaining(), "remaining while paused")

	state := pc.State()
	testutil.AssertEqual(t, domain.PauseReasonClaudeOutage, state.Reason, "pause reason")
	testutil.AssertEqual(t, 1, len(hub.EventsOfType(events.EventTypeSessionPaused)), "pause events")
}

func TestPauseController_RepeatedPauseRefreshesMessage(t *testing.T) {
	pc, _, _ := newPauseFixture()

	pc.PauseFor(domain.PauseReasonClaudeOutage, "first")
	pc.PauseFor(domain.PauseReasonClaudeOutage, "second")

	testutil.AssertTrue(t, pc.Paused(), "still paused")
	testutil.AssertEqual(t, "second", pc.State().Message, "refreshed message")
}

func TestPauseController_ResumeWithOverride(t *testing.T) {
	pc, clock, hub := newPauseFixture()

	pc.PauseFor(domain.PauseReasonClaudeOutage, "")
	remaining := 1200
	pc.ResumeWith(&remaining)

	testutil.AssertFalse(t, pc.Paused(), "paused after resume")
	testutil.AssertEqual(t, 1200, clock.Remaining(), "adopted server remaining")
	testutil.AssertFalse(t, clock.Paused(), "clock resumed")
	testutil.AssertEqual(t, 1, len(hub.EventsOfType(events.EventTypeSessionResumed)), "resume events")
}

func TestPauseController_SubmittedIsAbsorbing(t *testing.T) {
	pc, clock, _ := newPauseFixture()

	pc.CommitSubmit()
	testutil.AssertTrue(t, pc.Submitted(), "submitted")

	// Neither a pause nor a late resume leaves the terminal phase.
	pc.PauseFor(domain.PauseReasonClaudeOutage, "late outage")
	testutil.AssertTrue(t, pc.Submitted(), "submitted after late pause")

	remaining := 900
	pc.ResumeWith(&remaining)
	testutil.AssertTrue(t, pc.Submitted(), "submitted after late resume")
	testutil.AssertEqual(t, 1800, clock.Remaining(), "clock untouched by late resume")
}

func TestPauseController_OptimisticSubmitRollback(t *testing.T) {
	pc, clock, _ := newPauseFixture()

	rollback, err := pc.OptimisticSubmit()
	testutil.AssertNoError(t, err, "optimistic submit")
	testutil.AssertTrue(t, pc.Submitted(), "phase during in-flight submit")
	testutil.AssertTrue(t, clock.Paused(), "clock frozen during submit")

	rollback()
	testutil.AssertEqual(t, PhaseActive, pc.Phase(), "phase after rollback")
	testutil.AssertFalse(t, clock.Paused(), "clock after rollback")
}

func TestPauseController_OptimisticSubmitWhilePaused(t *testing.T) {
	pc, _, _ := newPauseFixture()
	pc.PauseFor(domain.PauseReasonClaudeOutage, "")

	_, err := pc.OptimisticSubmit()
	if err != domain.ErrSessionPaused {
		t.Fatalf("expected ErrSessionPaused, got %v", err)
	}
}

func TestPauseController_CheckActionable(t *testing.T) {
	pc, _, _ := newPauseFixture()
	testutil.AssertNoError(t, pc.CheckActionable(), "actionable while active")

	pc.PauseFor(domain.PauseReasonClaudeOutage, "")
	if err := pc.CheckActionable(); err != domain.ErrSessionPaused {
		t.Fatalf("expected ErrSessionPaused, got %v", err)
	}

	pc.ResumeWith(nil)
	pc.CommitSubmit()
	if err := pc.CheckActionable(); err != domain.ErrAlreadySubmitted {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestPauseController_EnsureActive(t *testing.T) {
	pc, clock, _ := newPauseFixture()

	pc.EnsureActive() // no-op while already active
	testutil.AssertEqual(t, PhaseActive, pc.Phase(), "phase unchanged")

	pc.PauseFor(domain.PauseReasonClaudeOutage, "")
	pc.EnsureActive()
	testutil.AssertFalse(t, pc.Paused(), "resumed by EnsureActive")
	testutil.AssertEqual(t, 1800, clock.Remaining(), "no time override")
}
