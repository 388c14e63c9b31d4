// Package backend implements the HTTP client for the assessment platform API.
// All persisted assessment state lives behind these calls; the runtime keeps
// only the live in-memory session.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/domain"
)

// Client defines the assessment backend operations consumed by the runtime.
type Client interface {
	Start(ctx context.Context, token string) (*StartResponse, error)
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error)
	SendAIMessage(ctx context.Context, req AIMessageRequest) (*AIMessageResponse, error)
	RetryAIHealth(ctx context.Context, assessmentID, token string) (*RetryHealthResponse, error)
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
}

// HTTPClient is the production Client implementation.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a backend client for the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// Start bootstraps a session from a candidate token.
func (c *HTTPClient) Start(ctx context.Context, token string) (*StartResponse, error) {
	if token == "" {
		return nil, domain.ErrMissingToken
	}
	var resp StartResponse
	if err := c.post(ctx, "start", "/api/assessments/start", map[string]string{"token": token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Execute runs candidate code against the task harness.
func (c *HTTPClient) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	var resp ExecuteResponse
	path := fmt.Sprintf("/api/assessments/%s/execute", req.AssessmentID)
	if err := c.post(ctx, "execute", path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendAIMessage forwards a candidate message to the AI assistant.
func (c *HTTPClient) SendAIMessage(ctx context.Context, req AIMessageRequest) (*AIMessageResponse, error) {
	var resp AIMessageResponse
	path := fmt.Sprintf("/api/assessments/%s/claude/message", req.AssessmentID)
	if err := c.post(ctx, "ai_message", path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetryAIHealth probes the AI backend while the session is paused.
func (c *HTTPClient) RetryAIHealth(ctx context.Context, assessmentID, token string) (*RetryHealthResponse, error) {
	var resp RetryHealthResponse
	path := fmt.Sprintf("/api/assessments/%s/claude/health", assessmentID)
	if err := c.post(ctx, "retry_health", path, map[string]string{"token": token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit sends the final code. Called at most once per session on success.
func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	path := fmt.Sprintf("/api/assessments/%s/submit", req.AssessmentID)
	if err := c.post(ctx, "submit", path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post issues a JSON POST and decodes the response into out. Non-2xx
// responses are decoded into the backend error envelope; the dedicated pause
// code becomes a domain.PauseError so callers can branch on it.
func (c *HTTPClient) post(ctx context.Context, op, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return domain.NewBackendError(op, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return domain.NewBackendError(op, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewBackendError(op, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewBackendError(op, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(op, resp.StatusCode, raw)
	}

	// Pause signals may also arrive on a 200 with an error envelope.
	if pe := pauseSignal(raw); pe != nil {
		return pe
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return domain.NewBackendError(op, resp.StatusCode, err)
		}
	}

	log.Trace().Str("op", op).Int("status", resp.StatusCode).Msg("backend call completed")
	return nil
}

// decodeError converts an error response body into a typed error.
func decodeError(op string, status int, raw []byte) error {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Code == domain.ErrCodeAssessmentPaused {
			return &domain.PauseError{
				Code:        body.Code,
				PauseReason: body.PauseReason,
				Message:     body.Message,
			}
		}
		msg := body.Message
		if msg == "" {
			msg = body.Error
		}
		if msg != "" {
			return domain.NewBackendError(op, status, fmt.Errorf("%s", msg))
		}
	}
	return domain.NewBackendError(op, status, fmt.Errorf("unexpected status %d", status))
}

// pauseSignal extracts an in-band pause signal from a success body, if any.
func pauseSignal(raw []byte) *domain.PauseError {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	if body.Code != domain.ErrCodeAssessmentPaused {
		return nil
	}
	return &domain.PauseError{
		Code:        body.Code,
		PauseReason: body.PauseReason,
		Message:     body.Message,
	}
}

var _ Client = (*HTTPClient)(nil)
