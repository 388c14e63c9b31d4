// Package store provides the SQLite-backed audit journal. Integrity-relevant
// session events (pauses, resumes, tab switches, submissions) are appended as
// they happen so recruiters can review a session after the fact, and so the
// record survives daemon restarts.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/events"
)

// schemaVersion is incremented when the journal schema changes; a mismatch
// recreates the table.
const schemaVersion = 1

// auditedEvents is the set of event types worth persisting. Clock ticks and
// terminal output are deliberately excluded: they are volume, not audit.
var auditedEvents = map[events.EventType]bool{
	events.EventTypeSessionStarted:    true,
	events.EventTypeSessionPaused:     true,
	events.EventTypeSessionResumed:    true,
	events.EventTypeSessionSubmitted:  true,
	events.EventTypeSubmitFailed:      true,
	events.EventTypeSessionClosed:     true,
	events.EventTypeProctoringFlagged: true,
	events.EventTypeBudgetUpdated:     true,
}

// Entry is one persisted journal row.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	EventType string    `json:"event_type"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal is the append-only audit store.
type Journal struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("audit journal opened")
	return j, nil
}

func (j *Journal) migrate() error {
	var version int
	err := j.db.QueryRow(`PRAGMA user_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version != 0 && version != schemaVersion {
		if _, err := j.db.Exec(`DROP TABLE IF EXISTS audit_events`); err != nil {
			return fmt.Errorf("failed to reset journal schema: %w", err)
		}
	}

	_, err = j.db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT NOT NULL,
			event_type  TEXT NOT NULL,
			payload     TEXT NOT NULL,
			created_at  TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_events(session_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}

	if _, err := j.db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

// Append persists an event. Events outside the audited set are ignored.
func (j *Journal) Append(e events.Event) error {
	if !auditedEvents[e.Type()] {
		return nil
	}

	payload, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return domain.ErrJournalClosed
	}

	_, err = j.db.Exec(
		`INSERT INTO audit_events (session_id, event_type, payload, created_at) VALUES (?, ?, ?, ?)`,
		e.GetSessionID(), string(e.Type()), string(payload), e.Timestamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// BySession returns all entries for a session in append order.
func (j *Journal) BySession(sessionID string) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, domain.ErrJournalClosed
	}

	rows, err := j.db.Query(
		`SELECT id, session_id, event_type, payload, created_at FROM audit_events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// Sessions returns the distinct session IDs present in the journal, most
// recent first.
func (j *Journal) Sessions() ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, domain.ErrJournalClosed
	}

	rows, err := j.db.Query(
		`SELECT session_id FROM audit_events GROUP BY session_id ORDER BY MAX(id) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
