package store

import (
	"path/filepath"
	"testing"

	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/testutil"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_AppendAndReadBack(t *testing.T) {
	j := openTestJournal(t)

	testutil.AssertNoError(t, j.Append(events.NewSessionStartedEvent("s1", "a1", 1800, true, false, false)), "append started")
	testutil.AssertNoError(t, j.Append(events.NewSessionPausedEvent("s1", domain.PauseReasonClaudeOutage, "outage")), "append paused")
	testutil.AssertNoError(t, j.Append(events.NewSessionSubmittedEvent("s1", true, 2)), "append submitted")

	entries, err := j.BySession("s1")
	testutil.AssertNoError(t, err, "read back")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	testutil.AssertEqual(t, string(events.EventTypeSessionStarted), entries[0].EventType, "append order preserved")
	testutil.AssertEqual(t, string(events.EventTypeSessionSubmitted), entries[2].EventType, "last entry")
	testutil.AssertContains(t, entries[1].Payload, domain.PauseReasonClaudeOutage, "payload serialized")
}

func TestJournal_VolumeEventsAreFiltered(t *testing.T) {
	j := openTestJournal(t)

	testutil.AssertNoError(t, j.Append(events.NewClockTickEvent("s1", 100, false)), "tick append is a silent no-op")
	testutil.AssertNoError(t, j.Append(events.NewTerminalOutputEvent("s1", "$ ls\n")), "terminal output no-op")
	testutil.AssertNoError(t, j.Append(events.NewProctoringFlaggedEvent("s1", 1)), "flag is audited")

	entries, err := j.BySession("s1")
	testutil.AssertNoError(t, err, "read back")
	if len(entries) != 1 {
		t.Fatalf("expected only the audited entry, got %d", len(entries))
	}
	testutil.AssertEqual(t, string(events.EventTypeProctoringFlagged), entries[0].EventType, "audited entry")
}

func TestJournal_SessionsMostRecentFirst(t *testing.T) {
	j := openTestJournal(t)

	_ = j.Append(events.NewSessionStartedEvent("s1", "a1", 1800, false, false, false))
	_ = j.Append(events.NewSessionStartedEvent("s2", "a2", 1800, false, false, false))
	_ = j.Append(events.NewSessionPausedEvent("s1", "x", "")) // s1 touched last

	ids, err := j.Sessions()
	testutil.AssertNoError(t, err, "sessions")
	if len(ids) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(ids))
	}
	testutil.AssertEqual(t, "s1", ids[0], "most recently touched first")
	testutil.AssertEqual(t, "s2", ids[1], "older second")
}

func TestJournal_ClosedRejectsWrites(t *testing.T) {
	j := openTestJournal(t)
	testutil.AssertNoError(t, j.Close(), "close")
	testutil.AssertNoError(t, j.Close(), "double close")

	if err := j.Append(events.NewSessionClosedEvent("s1")); err != domain.ErrJournalClosed {
		t.Fatalf("expected ErrJournalClosed, got %v", err)
	}
	if _, err := j.BySession("s1"); err != domain.ErrJournalClosed {
		t.Fatalf("expected ErrJournalClosed, got %v", err)
	}
}

func TestJournal_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	testutil.AssertNoError(t, j.Append(events.NewSessionStartedEvent("s1", "a1", 1800, false, false, false)), "append")
	testutil.AssertNoError(t, j.Close(), "close")

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = j2.Close() }()

	entries, err := j2.BySession("s1")
	testutil.AssertNoError(t, err, "read after reopen")
	if len(entries) != 1 {
		t.Fatalf("expected the record to survive restart, got %d entries", len(entries))
	}
}
