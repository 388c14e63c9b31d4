package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/backend"
	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/ports"
)

// Manager hosts the live sessions of one daemon, keyed by session ID.
type Manager struct {
	client backend.Client
	hub    ports.EventHub

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(client backend.Client, hub ports.EventHub) *Manager {
	return &Manager{
		client:   client,
		hub:      hub,
		sessions: make(map[string]*Session),
	}
}

// StartSession bootstraps a session from a candidate token in one shot:
// clock, repository snapshot, budget and pause state all come from the
// start response. A missing token is fatal and local: no backend call is
// attempted and no session is created.
func (m *Manager) StartSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, domain.ErrMissingToken
	}

	start, err := m.client.Start(ctx, token)
	if err != nil {
		log.Error().Err(err).Msg("session bootstrap failed")
		return nil, err
	}

	s := New(start, m.client, m.hub)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.Start()
	return s, nil
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// List returns the runtime state of every hosted session.
func (m *Manager) List() []*RuntimeState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*RuntimeState, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.RuntimeState())
	}
	return out
}

// CloseSession tears down and removes a session.
func (m *Manager) CloseSession(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Close()
	return nil
}

// CloseAll tears down every session, used at daemon shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Count returns the number of hosted sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
