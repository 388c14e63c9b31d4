// Package session implements the assessment session runtime: the pausable
// countdown, proctoring telemetry, AI budget tracking, pause state machine,
// repository file store, interaction gateway and terminal bridge that
// together own one candidate's live session.
package session

import (
	"sync"
	"time"
)

// TimeLowThreshold is the boundary below which the remaining time is
// considered low. The state flips at remaining < threshold, not at equality.
const TimeLowThreshold = 300

// Clock is the pausable 1-Hz countdown for a session. It is the sole
// authority on time remaining and on firing the auto-submit trigger.
//
// The interval keeps running while paused; Tick simply refuses to decrement.
// This means a resume never "catches up" missed seconds.
type Clock struct {
	mu        sync.Mutex
	remaining int
	paused    bool
	expired   bool
	stopped   bool

	onTick   func(remaining int, timeLow bool)
	onExpire func()

	done     chan struct{}
	stopOnce sync.Once
}

// NewClock creates a clock with the given remaining seconds. onTick fires
// after every effective decrement; onExpire fires exactly once when the
// clock reaches zero.
func NewClock(remaining int, onTick func(int, bool), onExpire func()) *Clock {
	return &Clock{
		remaining: remaining,
		onTick:    onTick,
		onExpire:  onExpire,
		done:      make(chan struct{}),
	}
}

// Start launches the 1-second interval. It returns immediately.
func (c *Clock) Start() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				c.Tick()
			}
		}
	}()
}

// Tick performs one countdown step. It is a no-op while paused, after
// expiry, and after Stop. A clock already at zero (bootstrapped with no
// time left, or overridden down to zero) expires on its next tick.
// Exported so tests can drive the clock without waiting on wall time.
func (c *Clock) Tick() {
	c.mu.Lock()
	if c.paused || c.expired || c.stopped {
		c.mu.Unlock()
		return
	}
	decremented := c.remaining > 0
	if decremented {
		c.remaining--
	}
	remaining := c.remaining
	expired := remaining <= 0
	if expired {
		c.expired = true
	}
	onTick := c.onTick
	onExpire := c.onExpire
	c.mu.Unlock()

	// Callbacks run outside the lock: the expire path re-enters the session
	// through the submit flow.
	if decremented && onTick != nil {
		onTick(remaining, remaining < TimeLowThreshold)
	}
	if expired && onExpire != nil {
		onExpire()
	}
}

// Pause freezes the countdown.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume unfreezes the countdown from its last known value.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// SetRemaining applies an authoritative server override.
func (c *Clock) SetRemaining(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired || c.stopped {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	c.remaining = seconds
}

// Remaining returns the current remaining seconds.
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Paused returns whether the countdown is frozen.
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Expired returns whether the clock has reached zero.
func (c *Clock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// TimeLow returns whether the remaining time is below the low boundary.
func (c *Clock) TimeLow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining < TimeLowThreshold
}

// Stop cancels the interval permanently. Safe to call multiple times.
func (c *Clock) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.stopOnce.Do(func() { close(c.done) })
}
