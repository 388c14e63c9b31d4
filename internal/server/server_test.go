package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hirebench/sessiond/internal/backend"
	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/hub"
	"github.com/hirebench/sessiond/internal/session"
)

// stubBackend satisfies backend.Client with canned bootstrap responses.
type stubBackend struct {
	startErr error
}

func (s *stubBackend) Start(_ context.Context, token string) (*backend.StartResponse, error) {
	if token == "" {
		return nil, domain.ErrMissingToken
	}
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &backend.StartResponse{
		AssessmentID:         "a1",
		Token:                token,
		TimeRemainingSeconds: 1800,
		Task: backend.TaskInfo{
			StarterCode:     "print('hi')",
			StarterFilePath: "main.py",
			DurationMinutes: 30,
		},
	}, nil
}

func (s *stubBackend) Execute(context.Context, backend.ExecuteRequest) (*backend.ExecuteResponse, error) {
	return &backend.ExecuteResponse{Stdout: "ok"}, nil
}

func (s *stubBackend) SendAIMessage(context.Context, backend.AIMessageRequest) (*backend.AIMessageResponse, error) {
	return &backend.AIMessageResponse{Response: "hello"}, nil
}

func (s *stubBackend) RetryAIHealth(context.Context, string, string) (*backend.RetryHealthResponse, error) {
	return &backend.RetryHealthResponse{Success: true}, nil
}

func (s *stubBackend) Submit(context.Context, backend.SubmitRequest) (*backend.SubmitResponse, error) {
	return &backend.SubmitResponse{Success: true}, nil
}

type serverFixture struct {
	srv     *Server
	ts      *httptest.Server
	manager *session.Manager
	hub     *hub.Hub
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	h := hub.New()
	if err := h.Start(); err != nil {
		t.Fatalf("start hub: %v", err)
	}
	manager := session.NewManager(&stubBackend{}, h)
	srv := New(Options{Host: "127.0.0.1", Port: 0}, manager, h, nil)

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(func() {
		ts.Close()
		manager.CloseAll()
		_ = h.Stop()
	})
	return &serverFixture{srv: srv, ts: ts, manager: manager, hub: h}
}

func (f *serverFixture) createSession(t *testing.T) string {
	t.Helper()
	resp, err := http.Post(f.ts.URL+"/sessions", "application/json",
		bytes.NewReader([]byte(`{"token":"tok-1"}`)))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	var body struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		Join struct {
			WebSocket string `json:"ws"`
		} `json:"join"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Session.ID == "" {
		t.Fatal("expected session id")
	}
	if !strings.Contains(body.Join.WebSocket, "/ws/"+body.Session.ID) {
		t.Errorf("join link = %s", body.Join.WebSocket)
	}
	return body.Session.ID
}

func TestServer_Health(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %s", body.Status)
	}
	if body.Sessions != 0 {
		t.Errorf("sessions = %d, want 0", body.Sessions)
	}
}

func TestServer_CreateSessionRequiresToken(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Post(f.ts.URL+"/sessions", "application/json",
		bytes.NewReader([]byte(`{"token":""}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Code != domain.ErrCodeMissingToken {
		t.Errorf("code = %s, want %s", body.Code, domain.ErrCodeMissingToken)
	}
}

func TestServer_SessionLifecycleOverHTTP(t *testing.T) {
	f := newServerFixture(t)
	id := f.createSession(t)

	resp, err := http.Get(f.ts.URL + "/sessions/" + id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, f.ts.URL+"/sessions/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete session: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}

	resp, err = http.Get(f.ts.URL + "/sessions/" + id)
	if err != nil {
		t.Fatalf("get closed session: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after close status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_UnknownSessionIs404(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/sessions/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Code != domain.ErrCodeSessionNotFound {
		t.Errorf("code = %s", body.Code)
	}
}

func TestServer_JournalDisabledIs404(t *testing.T) {
	f := newServerFixture(t)
	id := f.createSession(t)

	resp, err := http.Get(f.ts.URL + "/sessions/" + id + "/journal")
	if err != nil {
		t.Fatalf("get journal: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when journal disabled", resp.StatusCode)
	}
}

func TestServer_TerminalReplayRequiresTerminalMode(t *testing.T) {
	f := newServerFixture(t)
	id := f.createSession(t)

	resp, err := http.Get(f.ts.URL + "/sessions/" + id + "/terminal")
	if err != nil {
		t.Fatalf("get terminal: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-terminal session", resp.StatusCode)
	}
}

func TestServer_WebSocketSendsSnapshotFirst(t *testing.T) {
	f := newServerFixture(t)
	id := f.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var envelope struct {
		Event     string `json:"event"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Event != "snapshot" {
		t.Errorf("first message = %s, want snapshot", envelope.Event)
	}
	if envelope.SessionID != id {
		t.Errorf("session_id = %s, want %s", envelope.SessionID, id)
	}
}

func TestServer_StopClosesConnectedClients(t *testing.T) {
	f := newServerFixture(t)
	id := f.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	waitDeadline := time.Now().Add(2 * time.Second)
	for f.srv.ClientCount() == 0 && time.Now().Before(waitDeadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.srv.ClientCount() != 1 {
		t.Fatalf("client count = %d, want 1", f.srv.ClientCount())
	}

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stopped <- f.srv.Stop(ctx)
	}()

	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return with a connected client")
	}

	if f.srv.ClientCount() != 0 {
		t.Errorf("client count after stop = %d, want 0", f.srv.ClientCount())
	}
}

func TestServer_WebSocketUnknownSession(t *testing.T) {
	f := newServerFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws/ghost"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial failure for unknown session")
	}
	if resp != nil && resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
