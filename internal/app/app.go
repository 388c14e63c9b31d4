// Package app orchestrates all components of sessiond.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/backend"
	"github.com/hirebench/sessiond/internal/config"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/hub"
	"github.com/hirebench/sessiond/internal/server"
	"github.com/hirebench/sessiond/internal/session"
	"github.com/hirebench/sessiond/internal/store"
	"github.com/hirebench/sessiond/internal/terminal"
	"github.com/hirebench/sessiond/internal/watcher"
)

// watcherDebounce coalesces editor write bursts before a workspace file is
// synced back into the session.
const watcherDebounce = 200 * time.Millisecond

// App wires the daemon together: event hub, audit journal, backend client,
// session manager and the client-facing server. Terminal-mode sessions
// additionally get a PTY runner and a workspace watcher, attached when the
// session announces itself on the hub.
type App struct {
	cfg     *config.Config
	version string

	hub     *hub.Hub
	journal *store.Journal
	client  backend.Client
	manager *session.Manager
	server  *server.Server

	mu       sync.Mutex
	running  bool
	runners  map[string]*terminal.Runner
	watchers map[string]*watcher.Watcher
	cancels  map[string]context.CancelFunc
}

// New creates the daemon from configuration.
func New(cfg *config.Config, version string) (*App, error) {
	a := &App{
		cfg:      cfg,
		version:  version,
		hub:      hub.New(),
		runners:  make(map[string]*terminal.Runner),
		watchers: make(map[string]*watcher.Watcher),
		cancels:  make(map[string]context.CancelFunc),
	}

	a.client = backend.NewHTTPClient(
		cfg.Backend.BaseURL,
		time.Duration(cfg.Backend.TimeoutSeconds)*time.Second,
	)
	a.manager = session.NewManager(a.client, a.hub)

	if cfg.Journal.Enabled {
		journal, err := store.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit journal: %w", err)
		}
		a.journal = journal
	}

	a.server = server.New(server.Options{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		ExternalURL: cfg.Server.ExternalURL,
		ShowQR:      cfg.Pairing.ShowQRInTerminal,
	}, a.manager, a.hub, a.journal)

	return a, nil
}

// Start starts the daemon and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.mu.Unlock()

	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	// Audit journal sees the whole stream and persists what matters.
	if a.journal != nil {
		journalSub := hub.NewFuncSubscriber("audit-journal", func(ev events.Event) error {
			if err := a.journal.Append(ev); err != nil {
				log.Warn().Err(err).Str("event", string(ev.Type())).Msg("journal append failed")
			}
			return nil
		})
		a.hub.Subscribe(hub.NewSessionFilter(journalSub, ""))
	}

	// Terminal-mode sessions get their PTY runner and workspace watcher
	// attached as soon as the session announces itself.
	lifecycleSub := hub.NewFuncSubscriber("session-lifecycle", func(ev events.Event) error {
		switch ev.Type() {
		case events.EventTypeSessionStarted:
			go a.attachTerminal(ctx, ev.GetSessionID())
		case events.EventTypeSessionClosed, events.EventTypeSessionSubmitted:
			a.detachTerminal(ev.GetSessionID())
		}
		return nil
	})
	a.hub.Subscribe(hub.NewSessionFilter(lifecycleSub, ""))

	if err := a.server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info().
		Str("version", a.version).
		Str("addr", fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)).
		Bool("journal", a.journal != nil).
		Msg("sessiond ready")

	<-ctx.Done()
	return a.shutdown()
}

// attachTerminal starts the PTY runner and workspace watcher for a
// terminal-mode session. Non-terminal sessions are ignored.
func (a *App) attachTerminal(ctx context.Context, sessionID string) {
	sess, err := a.manager.Get(sessionID)
	if err != nil || !sess.Options().TerminalMode || sess.Terminal() == nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)

	runner := terminal.NewRunner(
		a.cfg.Terminal.WorkDir,
		a.cfg.Terminal.Command,
		a.cfg.Terminal.Args,
		sess.Terminal(),
	)

	a.mu.Lock()
	if _, exists := a.runners[sessionID]; exists {
		a.mu.Unlock()
		cancel()
		return
	}
	a.runners[sessionID] = runner
	a.cancels[sessionID] = cancel
	a.mu.Unlock()

	if a.cfg.Terminal.WatchDirs && a.cfg.Terminal.WorkDir != "" {
		w := watcher.New(a.cfg.Terminal.WorkDir, sessionID, sess.Files(), a.hub, watcherDebounce)
		if err := w.Start(runCtx); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to start workspace watcher")
		} else {
			a.mu.Lock()
			a.watchers[sessionID] = w
			a.mu.Unlock()
		}
	}

	log.Info().
		Str("session_id", sessionID).
		Str("command", a.cfg.Terminal.Command).
		Msg("terminal runner starting")

	if err := runner.Run(runCtx); err != nil && runCtx.Err() == nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("terminal runner exited with error")
	}
}

// detachTerminal stops the runner and watcher of a session, if any.
func (a *App) detachTerminal(sessionID string) {
	a.mu.Lock()
	runner := a.runners[sessionID]
	w := a.watchers[sessionID]
	cancel := a.cancels[sessionID]
	delete(a.runners, sessionID)
	delete(a.watchers, sessionID)
	delete(a.cancels, sessionID)
	a.mu.Unlock()

	if runner != nil {
		_ = runner.Stop()
	}
	if w != nil {
		_ = w.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

// shutdown tears everything down in reverse dependency order.
func (a *App) shutdown() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	sessionIDs := make([]string, 0, len(a.runners))
	for id := range a.runners {
		sessionIDs = append(sessionIDs, id)
	}
	a.mu.Unlock()

	log.Info().Msg("shutting down...")

	for _, id := range sessionIDs {
		a.detachTerminal(id)
	}

	a.manager.CloseAll()

	// Give closing events time to reach subscribers and the journal.
	time.Sleep(100 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := a.server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error stopping server")
	}
	cancel()

	if err := a.hub.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping event hub")
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			log.Error().Err(err).Msg("error closing audit journal")
		}
	}

	return nil
}

// Manager returns the session manager.
func (a *App) Manager() *session.Manager {
	return a.manager
}

// Hub returns the event hub.
func (a *App) Hub() *hub.Hub {
	return a.hub
}
