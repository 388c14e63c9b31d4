package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/backend"
	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/domain/ports"
)

// Status is the session's externally visible state.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusSubmitted Status = "submitted"
)

// Options parametrize the single session runtime. Historical variants of
// this runtime (proctored, terminal-mode, budgeted) are one implementation
// with these switches.
type Options struct {
	Proctoring    bool
	TerminalMode  bool
	BudgetEnabled bool
}

// Session owns one candidate's live assessment for the duration of the
// test. It wires the clock, pause controller, budget tracker, proctoring
// monitor, file store, gateway and (in terminal mode) the terminal bridge,
// and enforces the single-writer rule: each piece of state has exactly one
// owning component.
type Session struct {
	ID           string    `json:"id"`
	AssessmentID string    `json:"assessment_id"`
	StartedAt    time.Time `json:"started_at"`

	token string
	opts  Options
	hub   ports.EventHub

	clock   *Clock
	pause   *PauseController
	budget  *Budget
	proctor *Proctoring
	files   *FileStore
	bridge  *TerminalBridge
	gateway *Gateway

	// gen invalidates in-flight network results on teardown and after a
	// successful submission.
	gen atomic.Int64

	closeOnce sync.Once
}

// New builds a session from the backend's start response. The clock is not
// running until Start is called.
func New(start *backend.StartResponse, client backend.Client, hub ports.EventHub) *Session {
	opts := Options{
		Proctoring:    start.Task.ProctoringEnabled,
		TerminalMode:  start.Task.TerminalMode,
		BudgetEnabled: start.ClaudeBudget != nil && start.ClaudeBudget.Enabled,
	}

	s := &Session{
		ID:           uuid.NewString(),
		AssessmentID: start.AssessmentID,
		StartedAt:    time.Now().UTC(),
		token:        start.Token,
		opts:         opts,
		hub:          hub,
	}

	s.clock = NewClock(start.TimeRemainingSeconds, s.handleTick, s.handleExpire)
	s.pause = NewPauseController(s.ID, s.clock, hub)
	s.budget = NewBudget(s.ID, start.ClaudeBudget, hub)
	s.proctor = NewProctoring(s.ID, opts.Proctoring, hub)
	s.files = NewFileStore(start.Task)
	if opts.TerminalMode {
		s.bridge = NewTerminalBridge(s.ID, s.pause, hub)
	}
	s.gateway = &Gateway{
		sessionID:    s.ID,
		assessmentID: s.AssessmentID,
		token:        s.token,
		backend:      client,
		clock:        s.clock,
		pause:        s.pause,
		budget:       s.budget,
		proctor:      s.proctor,
		files:        s.files,
		hub:          hub,
		gen:          &s.gen,
	}

	// The server can deliver a session already frozen, e.g. after an AI
	// outage began while the candidate was away.
	if start.IsTimerPaused {
		reason := start.PauseReason
		if reason == "" {
			reason = domain.PauseReasonClaudeOutage
		}
		s.pause.PauseFor(reason, start.PauseMessage)
	}

	return s
}

// Start launches the countdown and announces the session.
func (s *Session) Start() {
	s.clock.Start()
	s.hub.Publish(events.NewSessionStartedEvent(
		s.ID, s.AssessmentID, s.clock.Remaining(),
		s.opts.Proctoring, s.opts.TerminalMode, s.opts.BudgetEnabled,
	))
	log.Info().
		Str("session_id", s.ID).
		Str("assessment_id", s.AssessmentID).
		Int("remaining", s.clock.Remaining()).
		Bool("proctoring", s.opts.Proctoring).
		Bool("terminal_mode", s.opts.TerminalMode).
		Msg("session started")
}

func (s *Session) handleTick(remaining int, timeLow bool) {
	s.hub.Publish(events.NewClockTickEvent(s.ID, remaining, timeLow))
}

func (s *Session) handleExpire() {
	s.hub.Publish(events.NewClockExpiredEvent(s.ID))
	log.Info().Str("session_id", s.ID).Msg("time expired, auto-submitting")

	// Auto-submit is the designed timeout transition: equivalent to the
	// candidate pressing submit, minus the confirmation step. The gateway's
	// idempotency guard absorbs any race with an in-flight manual submit.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.gateway.Submit(ctx, true, true); err != nil {
			log.Error().Str("session_id", s.ID).Err(err).Msg("auto-submit failed")
		}
	}()
}

// Close tears the session down: timers cancelled, in-flight network results
// invalidated, subscriptions released. Safe to call multiple times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.gen.Add(1)
		s.clock.Stop()
		s.proctor.Stop()
		if s.bridge != nil {
			s.bridge.SetDisconnected(true)
		}
		s.hub.Publish(events.NewSessionClosedEvent(s.ID))
		log.Info().Str("session_id", s.ID).Msg("session closed")
	})
}

// Status derives the externally visible state from the pause controller.
func (s *Session) Status() Status {
	switch s.pause.Phase() {
	case PhaseSubmitted:
		return StatusSubmitted
	case PhasePaused:
		return StatusPaused
	default:
		return StatusActive
	}
}

// Gateway returns the interaction gateway.
func (s *Session) Gateway() *Gateway {
	return s.gateway
}

// Clock returns the session clock.
func (s *Session) Clock() *Clock {
	return s.clock
}

// Pause returns the pause controller.
func (s *Session) Pause() *PauseController {
	return s.pause
}

// Budget returns the budget tracker.
func (s *Session) Budget() *Budget {
	return s.budget
}

// Proctoring returns the proctoring monitor.
func (s *Session) Proctoring() *Proctoring {
	return s.proctor
}

// Files returns the repository file store.
func (s *Session) Files() *FileStore {
	return s.files
}

// Terminal returns the terminal bridge, nil outside terminal mode.
func (s *Session) Terminal() *TerminalBridge {
	return s.bridge
}

// Options returns the runtime switches this session was built with.
func (s *Session) Options() Options {
	return s.opts
}

// RuntimeState is the reconnection snapshot: everything a client needs to
// render the session without replaying history.
type RuntimeState struct {
	ID               string                 `json:"id"`
	AssessmentID     string                 `json:"assessment_id"`
	Status           Status                 `json:"status"`
	StartedAt        time.Time              `json:"started_at"`
	RemainingSeconds int                    `json:"remaining_seconds"`
	TimeLow          bool                   `json:"time_low"`
	Pause            PauseState             `json:"pause"`
	Budget           backend.BudgetSnapshot `json:"budget"`
	Proctoring       ProctoringState        `json:"proctoring"`
	ActiveFile       string                 `json:"active_file"`
	Tree             []TreeGroup            `json:"tree"`
	TerminalMode     bool                   `json:"terminal_mode"`
	TerminalCursor   int                    `json:"terminal_cursor"`
}

// ProctoringState is the proctoring slice of the runtime snapshot.
type ProctoringState struct {
	Enabled        bool `json:"enabled"`
	BrowserFocused bool `json:"browser_focused"`
	TabSwitchCount int  `json:"tab_switch_count"`
	NoticeActive   bool `json:"notice_active"`
}

// RuntimeState builds the current reconnection snapshot.
func (s *Session) RuntimeState() *RuntimeState {
	state := &RuntimeState{
		ID:               s.ID,
		AssessmentID:     s.AssessmentID,
		Status:           s.Status(),
		StartedAt:        s.StartedAt,
		RemainingSeconds: s.clock.Remaining(),
		TimeLow:          s.clock.TimeLow(),
		Pause:            s.pause.State(),
		Budget:           s.budget.Snapshot(),
		Proctoring: ProctoringState{
			Enabled:        s.proctor.Enabled(),
			BrowserFocused: s.proctor.BrowserFocused(),
			TabSwitchCount: s.proctor.TabSwitchCount(),
			NoticeActive:   s.proctor.NoticeActive(),
		},
		ActiveFile:   s.files.ActivePath(),
		Tree:         s.files.ListTree(),
		TerminalMode: s.opts.TerminalMode,
	}
	if s.bridge != nil {
		state.TerminalCursor = s.bridge.Len()
	}
	return state
}
