// Package server exposes the session runtime to browser clients: a small
// JSON API for creating and inspecting sessions, and a WebSocket endpoint
// per session carrying the live event stream and control messages.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/ports"
	"github.com/hirebench/sessiond/internal/hub"
	"github.com/hirebench/sessiond/internal/pairing"
	"github.com/hirebench/sessiond/internal/session"
	"github.com/hirebench/sessiond/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The daemon binds to localhost by default; origin checks are
		// delegated to the deployment's reverse proxy.
		return true
	},
}

// Options configure the server.
type Options struct {
	Host        string
	Port        int
	ExternalURL string
	ShowQR      bool
}

// Server is the combined HTTP/WebSocket server.
type Server struct {
	opts     Options
	manager  *session.Manager
	eventHub ports.EventHub
	journal  *store.Journal // nil when the journal is disabled

	httpServer *http.Server
	startTime  time.Time

	mu      sync.RWMutex
	clients map[string]*Client
}

// New creates the server.
func New(opts Options, manager *session.Manager, eventHub ports.EventHub, journal *store.Journal) *Server {
	s := &Server{
		opts:      opts,
		manager:   manager,
		eventHub:  eventHub,
		journal:   journal,
		startTime: time.Now(),
		clients:   make(map[string]*Client),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/journal", s.handleJournal).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/terminal", s.handleTerminalReplay).Methods(http.MethodGet)
	r.HandleFunc("/ws/{id}", s.handleWebSocket).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: r,
		// No Read/WriteTimeout: they would tear down long-lived WebSocket
		// connections; the ws pumps manage their own deadlines.
	}

	return s
}

// Start begins serving. It returns immediately.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()
	return nil
}

// Stop shuts the server down gracefully. Clients are closed outside the
// lock: Client.Close re-enters onClientClose, which needs it.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[string]*Client)
	s.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}

	return s.httpServer.Shutdown(ctx)
}

// --- HTTP handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"sessions":       s.manager.Count(),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

type createSessionRequest struct {
	Token string `json:"token"`
}

type createSessionResponse struct {
	Session *session.RuntimeState `json:"session"`
	Join    *pairing.JoinInfo     `json:"join"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrCodeInvalidPayload, "invalid request body")
		return
	}

	sess, err := s.manager.StartSession(r.Context(), req.Token)
	if err != nil {
		if err == domain.ErrMissingToken {
			writeError(w, http.StatusBadRequest, domain.ErrCodeMissingToken, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, domain.ErrCodeInternalError, err.Error())
		return
	}

	gen := pairing.NewGenerator(s.opts.Host, s.opts.Port, sess.ID, sess.AssessmentID)
	if s.opts.ExternalURL != "" {
		gen.SetExternalURL(s.opts.ExternalURL)
	}
	if s.opts.ShowQR {
		gen.PrintToTerminal()
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		Session: sess.RuntimeState(),
		Join:    gen.JoinInfo(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": s.manager.List(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, domain.ErrCodeSessionNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess.RuntimeState())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.CloseSession(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusNotFound, domain.ErrCodeSessionNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, domain.ErrCodeInternalError, "audit journal is disabled")
		return
	}
	entries, err := s.journal.BySession(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, domain.ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
	})
}

// handleTerminalReplay serves the terminal backlog from a cursor, so a
// reconnecting client can catch up without replaying the whole stream.
func (s *Server) handleTerminalReplay(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, domain.ErrCodeSessionNotFound, err.Error())
		return
	}
	bridge := sess.Terminal()
	if bridge == nil {
		writeError(w, http.StatusBadRequest, domain.ErrCodeInvalidPayload, "session is not in terminal mode")
		return
	}

	cursor := 0
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cursor = n
		}
	}

	evs, next := bridge.ConsumeFrom(cursor)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": evs,
		"cursor": next,
	})
}

// --- WebSocket handler ---

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, domain.ErrCodeSessionNotFound, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, sess, s.onClientClose)

	s.mu.Lock()
	s.clients[client.ID()] = client
	s.mu.Unlock()

	s.eventHub.Subscribe(hub.NewSessionFilter(client, sess.ID))
	client.Start()

	// Initial reconnection snapshot so the client renders without history.
	client.SendSnapshot()

	log.Info().
		Str("client_id", client.ID()).
		Str("session_id", sess.ID).
		Msg("client connected")
}

func (s *Server) onClientClose(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
	s.eventHub.Unsubscribe(id)
	log.Info().Str("client_id", id).Msg("client disconnected")
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
