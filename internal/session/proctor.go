package session

import (
	"sync"
	"time"

	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/domain/ports"
)

// noticeDuration is how long the transient "recorded" notice stays visible
// after a tab switch is flagged.
const noticeDuration = 3 * time.Second

// Proctoring consumes focus/blur/visibility signals from the client and
// maintains the monotonic tab-switch counter. When proctoring is disabled
// for the task, it is inert: the counter stays at zero and BrowserFocused
// always reports true.
type Proctoring struct {
	sessionID string
	enabled   bool
	hub       ports.EventHub

	mu          sync.Mutex
	focused     bool
	hidden      bool
	tabSwitches int
	notice      bool
	noticeTimer *time.Timer
}

// NewProctoring creates a proctoring monitor.
func NewProctoring(sessionID string, enabled bool, hub ports.EventHub) *Proctoring {
	return &Proctoring{
		sessionID: sessionID,
		enabled:   enabled,
		hub:       hub,
		focused:   true,
	}
}

// Enabled returns whether proctoring is active for this session.
func (p *Proctoring) Enabled() bool {
	return p.enabled
}

// HandleVisibility applies a page-visibility signal. Only the
// visible→hidden transition increments the counter; repeated hidden
// signals are idempotent.
func (p *Proctoring) HandleVisibility(hidden bool) {
	if !p.enabled {
		return
	}

	p.mu.Lock()
	if hidden {
		if p.hidden {
			p.mu.Unlock()
			return
		}
		p.hidden = true
		p.focused = false
		p.tabSwitches++
		count := p.tabSwitches
		p.armNoticeLocked()
		p.mu.Unlock()

		if p.hub != nil {
			p.hub.Publish(events.NewProctoringFlaggedEvent(p.sessionID, count))
		}
		return
	}

	p.hidden = false
	p.focused = true
	p.mu.Unlock()
}

// HandleFocus applies a window focus/blur signal. Blur never touches the
// counter; that is the visibility transition's job.
func (p *Proctoring) HandleFocus(focused bool) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	p.focused = focused
	p.mu.Unlock()
}

// armNoticeLocked starts (or restarts) the transient notice timer.
// Caller must hold p.mu.
func (p *Proctoring) armNoticeLocked() {
	p.notice = true
	if p.noticeTimer != nil {
		p.noticeTimer.Stop()
	}
	p.noticeTimer = time.AfterFunc(noticeDuration, p.clearNotice)
}

func (p *Proctoring) clearNotice() {
	p.mu.Lock()
	p.notice = false
	p.mu.Unlock()
	if p.hub != nil {
		p.hub.Publish(events.NewProctoringClearedEvent(p.sessionID))
	}
}

// NoticeActive returns whether the transient "recorded" notice is showing.
func (p *Proctoring) NoticeActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notice
}

// BrowserFocused reports focus for downstream consumers. Forced true when
// proctoring is disabled.
func (p *Proctoring) BrowserFocused() bool {
	if !p.enabled {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focused
}

// TabSwitchCount returns the monotonic counter. Zero when proctoring is
// disabled, which is also what the submission path reports.
func (p *Proctoring) TabSwitchCount() int {
	if !p.enabled {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tabSwitches
}

// Stop cancels the notice timer.
func (p *Proctoring) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.noticeTimer != nil {
		p.noticeTimer.Stop()
		p.noticeTimer = nil
	}
	p.notice = false
}
