package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/backend"
	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/domain/ports"
)

// aiEmptyReply stands in for an empty assistant payload.
const aiEmptyReply = "The assistant returned an empty response. Please try again."

// Gateway mediates every outbound action of a session against the current
// pause and budget state: it gates locally before dispatch, attaches
// required telemetry, and interprets responses back into the pause
// controller, budget tracker and clock.
//
// The generation counter makes late responses provably inert: any response
// that lands after teardown or a successful submission observes a bumped
// generation and is discarded instead of being defended against at each
// call site.
type Gateway struct {
	sessionID    string
	assessmentID string
	token        string

	backend backend.Client
	clock   *Clock
	pause   *PauseController
	budget  *Budget
	proctor *Proctoring
	files   *FileStore
	hub     ports.EventHub
	gen     *atomic.Int64

	mu             sync.Mutex
	submitInFlight bool
	pasteDetected  bool
	lastAIMessage  time.Time
}

// Execute runs the given code (the active buffer when empty) against the
// task harness. Candidate-code failures are expected and surface as output,
// never as session faults; only the structured pause signal changes state.
func (g *Gateway) Execute(ctx context.Context, code string) (*events.ExecutionResultPayload, error) {
	if err := g.pause.CheckActionable(); err != nil {
		return nil, err
	}
	if code == "" {
		code = g.files.ActiveBuffer()
	}

	gen := g.gen.Load()
	resp, err := g.backend.Execute(ctx, backend.ExecuteRequest{
		AssessmentID: g.assessmentID,
		Code:         code,
		Token:        g.token,
	})
	if g.gen.Load() != gen {
		log.Debug().Str("session_id", g.sessionID).Msg("execute response discarded: stale generation")
		return nil, nil
	}

	if err != nil {
		if pe, ok := domain.AsPauseSignal(err); ok {
			g.pause.PauseFor(pe.PauseReason, pe.Message)
			return nil, err
		}
		// Transient failure: surfaced in the output panel, safe to retry.
		payload := events.ExecutionResultPayload{Error: err.Error()}
		g.hub.Publish(events.NewExecutionResultEvent(g.sessionID, payload))
		return &payload, nil
	}

	payload := events.ExecutionResultPayload{
		Stdout: resp.Stdout,
		Stderr: resp.Stderr,
		Output: resp.Output,
	}
	g.hub.Publish(events.NewExecutionResultEvent(g.sessionID, payload))
	return &payload, nil
}

// SendAIMessage forwards a candidate message to the AI assistant with
// telemetry attached at call time, then applies whatever authoritative
// state the response pushes back (budget, remaining time, pause signal).
// Returns the assistant's reply text.
func (g *Gateway) SendAIMessage(ctx context.Context, text string, history []backend.ChatTurn) (string, error) {
	if text == "" {
		return "", domain.ErrEmptyMessage
	}
	if err := g.pause.CheckActionable(); err != nil {
		return "", err
	}
	if g.budget.Exhausted() {
		return "", domain.ErrBudgetExhausted
	}

	telemetry := g.captureTelemetry()
	g.hub.Publish(events.NewAIMessageEvent(g.sessionID, "user", text))

	gen := g.gen.Load()
	resp, err := g.backend.SendAIMessage(ctx, backend.AIMessageRequest{
		AssessmentID: g.assessmentID,
		Message:      text,
		History:      history,
		Token:        g.token,
		Telemetry:    telemetry,
	})
	if g.gen.Load() != gen {
		log.Debug().Str("session_id", g.sessionID).Msg("ai response discarded: stale generation")
		return "", nil
	}

	if err != nil {
		if pe, ok := domain.AsPauseSignal(err); ok {
			g.pause.PauseFor(pe.PauseReason, pe.Message)
		}
		return "", err
	}

	g.budget.Apply(resp.ClaudeBudget)
	if resp.TimeRemainingSeconds != nil {
		g.clock.SetRemaining(*resp.TimeRemainingSeconds)
	}

	if (resp.IsTimerPaused != nil && *resp.IsTimerPaused) || resp.PauseReason != "" {
		reason := resp.PauseReason
		if reason == "" {
			reason = domain.PauseReasonClaudeOutage
		}
		g.pause.PauseFor(reason, resp.PauseMessage)
	} else {
		g.pause.EnsureActive()
	}

	reply := resp.Reply()
	if reply == "" {
		reply = aiEmptyReply
	}
	g.hub.Publish(events.NewAIMessageEvent(g.sessionID, "assistant", reply))
	return reply, nil
}

// captureTelemetry snapshots the telemetry attached to an AI message:
// current editor content, the paste flag (reset on read), browser focus,
// and milliseconds since the previous message (nil on the first).
func (g *Gateway) captureTelemetry() backend.Telemetry {
	g.mu.Lock()
	paste := g.pasteDetected
	g.pasteDetected = false

	var msSince *int64
	now := time.Now()
	if !g.lastAIMessage.IsZero() {
		ms := now.Sub(g.lastAIMessage).Milliseconds()
		msSince = &ms
	}
	g.lastAIMessage = now
	g.mu.Unlock()

	return backend.Telemetry{
		EditorContent:      g.files.ActiveBuffer(),
		PasteDetected:      paste,
		BrowserFocused:     g.proctor.BrowserFocused(),
		MsSincePrevMessage: msSince,
	}
}

// MarkPaste records that a paste was detected in the editor since the last
// AI message.
func (g *Gateway) MarkPaste() {
	g.mu.Lock()
	g.pasteDetected = true
	g.mu.Unlock()
}

// RetryAIHealth re-probes the AI backend. Only available while paused. On
// success the session resumes, adopting any server-pushed remaining time;
// on failure it stays paused with an updated message.
func (g *Gateway) RetryAIHealth(ctx context.Context) error {
	if !g.pause.Paused() {
		return domain.ErrNotPaused
	}

	gen := g.gen.Load()
	resp, err := g.backend.RetryAIHealth(ctx, g.assessmentID, g.token)
	if g.gen.Load() != gen {
		log.Debug().Str("session_id", g.sessionID).Msg("health probe discarded: stale generation")
		return nil
	}

	if err != nil {
		state := g.pause.State()
		g.pause.PauseFor(state.Reason, err.Error())
		return err
	}

	if resp.Success && !resp.IsTimerPaused {
		g.pause.ResumeWith(resp.TimeRemainingSeconds)
		return nil
	}

	reason := resp.PauseReason
	if reason == "" {
		reason = g.pause.State().Reason
	}
	g.pause.PauseFor(reason, resp.Message)
	return nil
}

// Submit sends the final code. It is exactly-once: concurrent and repeated
// calls after the first successful one are no-ops. Non-auto submissions
// must carry explicit confirmation; auto submissions (clock expiry) skip
// it. Status flips to submitted optimistically and rolls back on network
// failure so a resubmission stays possible.
func (g *Gateway) Submit(ctx context.Context, auto, confirmed bool) error {
	g.mu.Lock()
	if g.submitInFlight {
		g.mu.Unlock()
		return nil
	}
	if g.pause.Submitted() {
		g.mu.Unlock()
		return nil
	}
	if !auto && !confirmed {
		g.mu.Unlock()
		return domain.ErrConfirmRequired
	}

	rollback, err := g.pause.OptimisticSubmit()
	if err != nil {
		g.mu.Unlock()
		if err == domain.ErrAlreadySubmitted {
			return nil
		}
		return err
	}
	g.submitInFlight = true
	g.mu.Unlock()

	finalCode := g.files.ActiveBuffer()
	tabSwitches := g.proctor.TabSwitchCount()

	gen := g.gen.Load()
	_, err = g.backend.Submit(ctx, backend.SubmitRequest{
		AssessmentID:   g.assessmentID,
		FinalCode:      finalCode,
		Token:          g.token,
		TabSwitchCount: tabSwitches,
	})

	g.mu.Lock()
	g.submitInFlight = false
	g.mu.Unlock()

	if g.gen.Load() != gen {
		log.Debug().Str("session_id", g.sessionID).Msg("submit response discarded: stale generation")
		return nil
	}

	if err != nil {
		rollback()
		g.hub.Publish(events.NewSubmitFailedEvent(g.sessionID, err.Error()))
		if pe, ok := domain.AsPauseSignal(err); ok {
			g.pause.PauseFor(pe.PauseReason, pe.Message)
		}
		log.Warn().Str("session_id", g.sessionID).Err(err).Msg("submission failed, state rolled back")
		return err
	}

	g.gen.Add(1)
	g.pause.CommitSubmit()
	g.hub.Publish(events.NewSessionSubmittedEvent(g.sessionID, auto, tabSwitches))
	log.Info().
		Str("session_id", g.sessionID).
		Bool("auto", auto).
		Int("tab_switches", tabSwitches).
		Msg("assessment submitted")
	return nil
}

// SubmitInFlight reports whether a submission is currently dispatched.
func (g *Gateway) SubmitInFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submitInFlight
}
