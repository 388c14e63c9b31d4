package session

import (
	"sync"

	"github.com/hirebench/sessiond/internal/backend"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/domain/ports"
)

// Budget holds the AI-usage budget snapshot as pushed by the server.
// It is a read model: nothing here ever computes usage locally or mutates
// remote state. Exhaustion gates new AI messages only; it never touches the
// clock, code execution or submission.
type Budget struct {
	sessionID string
	hub       ports.EventHub

	mu   sync.RWMutex
	snap backend.BudgetSnapshot
}

// NewBudget creates a budget tracker seeded from the start response.
// A nil initial snapshot means budget tracking is disabled for the task.
func NewBudget(sessionID string, initial *backend.BudgetSnapshot, hub ports.EventHub) *Budget {
	b := &Budget{
		sessionID: sessionID,
		hub:       hub,
	}
	if initial != nil {
		b.snap = *initial
	}
	return b
}

// Apply replaces the snapshot wholesale. Nil payloads are ignored: a
// response without a budget field leaves the last snapshot in place.
func (b *Budget) Apply(snap *backend.BudgetSnapshot) {
	if snap == nil {
		return
	}
	b.mu.Lock()
	b.snap = *snap
	b.mu.Unlock()

	if b.hub != nil {
		b.hub.Publish(events.NewBudgetUpdatedEvent(b.sessionID, events.BudgetPayload{
			Enabled:      snap.Enabled,
			LimitUSD:     snap.LimitUSD,
			RemainingUSD: snap.RemainingUSD,
			TokensUsed:   snap.TokensUsed,
			IsExhausted:  snap.IsExhausted,
		}))
	}
}

// Snapshot returns a copy of the current budget state.
func (b *Budget) Snapshot() backend.BudgetSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// Enabled returns whether budget tracking is active.
func (b *Budget) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Enabled
}

// Exhausted returns whether the AI allowance is fully consumed.
func (b *Budget) Exhausted() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Enabled && b.snap.IsExhausted
}
