package session

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/domain/ports"
)

// Phase is the session's lifecycle phase.
type Phase string

const (
	PhaseActive    Phase = "active"
	PhasePaused    Phase = "paused"
	PhaseSubmitted Phase = "submitted"
)

// PauseState is the read-only view other components get of the pause
// machinery.
type PauseState struct {
	IsPaused bool   `json:"is_paused"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

// PauseController is the state machine deciding whether the session is
// active or paused. It is the only component permitted to stop and start
// the session clock, and PhaseSubmitted is absorbing: no transition leaves
// it, and late resume signals are discarded.
type PauseController struct {
	sessionID string
	clock     *Clock
	hub       ports.EventHub

	mu      sync.Mutex
	phase   Phase
	reason  string
	message string
}

// NewPauseController creates the controller in the active phase.
func NewPauseController(sessionID string, clock *Clock, hub ports.EventHub) *PauseController {
	return &PauseController{
		sessionID: sessionID,
		clock:     clock,
		hub:       hub,
		phase:     PhaseActive,
	}
}

// PauseFor moves to the paused phase and freezes the clock. Repeated pause
// signals only refresh the reason and message.
func (pc *PauseController) PauseFor(reason, message string) {
	pc.mu.Lock()
	if pc.phase == PhaseSubmitted {
		pc.mu.Unlock()
		return
	}
	alreadyPaused := pc.phase == PhasePaused
	pc.phase = PhasePaused
	pc.reason = reason
	pc.message = message
	pc.mu.Unlock()

	if !alreadyPaused {
		pc.clock.Pause()
		log.Info().
			Str("session_id", pc.sessionID).
			Str("reason", reason).
			Msg("session paused")
	}
	if pc.hub != nil {
		pc.hub.Publish(events.NewSessionPausedEvent(pc.sessionID, reason, message))
	}
}

// ResumeWith moves back to the active phase, adopting an authoritative
// remaining-time override when the server supplies one. A resume arriving
// after submission is a no-op.
func (pc *PauseController) ResumeWith(remaining *int) {
	pc.mu.Lock()
	if pc.phase == PhaseSubmitted {
		pc.mu.Unlock()
		log.Debug().Str("session_id", pc.sessionID).Msg("resume discarded: session already submitted")
		return
	}
	pc.phase = PhaseActive
	pc.reason = ""
	pc.message = ""
	pc.mu.Unlock()

	if remaining != nil {
		pc.clock.SetRemaining(*remaining)
	}
	pc.clock.Resume()

	log.Info().Str("session_id", pc.sessionID).Msg("session resumed")
	if pc.hub != nil {
		pc.hub.Publish(events.NewSessionResumedEvent(pc.sessionID, pc.clock.Remaining()))
	}
}

// EnsureActive resumes without a time override if currently paused.
func (pc *PauseController) EnsureActive() {
	pc.mu.Lock()
	paused := pc.phase == PhasePaused
	pc.mu.Unlock()
	if paused {
		pc.ResumeWith(nil)
	}
}

// OptimisticSubmit moves to the submitted phase before the network call and
// returns a rollback that restores the prior phase if the call fails.
// Returns an error without transitioning when the session is paused,
// already submitted, or a submission is in flight (callers guard that).
func (pc *PauseController) OptimisticSubmit() (rollback func(), err error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	switch pc.phase {
	case PhaseSubmitted:
		return nil, domain.ErrAlreadySubmitted
	case PhasePaused:
		return nil, domain.ErrSessionPaused
	}

	pc.phase = PhaseSubmitted
	pc.clock.Pause()

	return func() {
		pc.mu.Lock()
		pc.phase = PhaseActive
		pc.mu.Unlock()
		pc.clock.Resume()
	}, nil
}

// CommitSubmit finalizes a successful submission: the clock stops for good.
func (pc *PauseController) CommitSubmit() {
	pc.mu.Lock()
	pc.phase = PhaseSubmitted
	pc.mu.Unlock()
	pc.clock.Stop()
}

// CheckActionable rejects actions locally while paused or after submission,
// before any network dispatch.
func (pc *PauseController) CheckActionable() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	switch pc.phase {
	case PhasePaused:
		return domain.ErrSessionPaused
	case PhaseSubmitted:
		return domain.ErrAlreadySubmitted
	}
	return nil
}

// Phase returns the current phase.
func (pc *PauseController) Phase() Phase {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.phase
}

// Paused returns whether the session is currently paused.
func (pc *PauseController) Paused() bool {
	return pc.Phase() == PhasePaused
}

// Submitted returns whether the session has reached the terminal phase.
func (pc *PauseController) Submitted() bool {
	return pc.Phase() == PhaseSubmitted
}

// State returns the read-only pause state.
func (pc *PauseController) State() PauseState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return PauseState{
		IsPaused: pc.phase == PhasePaused,
		Reason:   pc.reason,
		Message:  pc.message,
	}
}
