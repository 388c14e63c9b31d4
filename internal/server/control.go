package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/backend"
	"github.com/hirebench/sessiond/internal/domain"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/session"
)

// networkTimeout bounds backend calls triggered by control messages. AI
// messages get a longer leash than the rest.
const (
	networkTimeout = 30 * time.Second
	aiTimeout      = 120 * time.Second
)

// Control message types accepted from the browser client.
const (
	ctrlVisibility     = "visibility"
	ctrlFocus          = "focus"
	ctrlEditorUpdate   = "editor_update"
	ctrlSelectFile     = "select_file"
	ctrlPasteDetected  = "paste_detected"
	ctrlExecute        = "execute"
	ctrlAIMessage      = "ai_message"
	ctrlRetryHealth    = "retry_health"
	ctrlSubmit         = "submit"
	ctrlTerminalInput  = "terminal_input"
	ctrlTerminalResize = "terminal_resize"
	ctrlTerminalReplay = "terminal_replay"
	ctrlPing           = "ping"
)

// controlMessage is the single inbound envelope. Fields are sparse; each
// type reads only its own.
type controlMessage struct {
	Type string `json:"type"`

	Hidden  bool `json:"hidden"`
	Focused bool `json:"focused"`

	Content string `json:"content"`
	Path    string `json:"path"`

	Code      string             `json:"code"`
	Text      string             `json:"text"`
	History   []backend.ChatTurn `json:"history"`
	Confirmed bool               `json:"confirmed"`

	Data   string `json:"data"`
	Rows   uint16 `json:"rows"`
	Cols   uint16 `json:"cols"`
	Cursor int    `json:"cursor"`
}

// dispatch routes one inbound control message. Local state updates run
// inline; anything that hits the network runs in its own goroutine so the
// read pump keeps draining.
func (c *Client) dispatch(raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError(domain.ErrCodeInvalidPayload, "malformed control message")
		return
	}

	s := c.sess
	switch msg.Type {
	case ctrlVisibility:
		s.Proctoring().HandleVisibility(msg.Hidden)

	case ctrlFocus:
		s.Proctoring().HandleFocus(msg.Focused)

	case ctrlEditorUpdate:
		s.Files().UpdateActiveBuffer(msg.Content)

	case ctrlSelectFile:
		content, err := s.Files().SelectFile(msg.Path)
		if err != nil {
			c.sendError(errorCode(err), err.Error())
			return
		}
		ev := events.NewFileSelectedEvent(s.ID, s.Files().ActivePath(), content)
		if err := c.Send(ev); err != nil {
			log.Debug().Str("client_id", c.id).Err(err).Msg("failed to send file selection")
		}

	case ctrlPasteDetected:
		s.Gateway().MarkPaste()

	case ctrlExecute:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
			defer cancel()
			if _, err := s.Gateway().Execute(ctx, msg.Code); err != nil {
				c.sendError(errorCode(err), err.Error())
			}
		}()

	case ctrlAIMessage:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
			defer cancel()
			if _, err := s.Gateway().SendAIMessage(ctx, msg.Text, msg.History); err != nil {
				c.sendError(errorCode(err), err.Error())
			}
		}()

	case ctrlRetryHealth:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
			defer cancel()
			if err := s.Gateway().RetryAIHealth(ctx); err != nil {
				c.sendError(errorCode(err), err.Error())
			}
		}()

	case ctrlSubmit:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
			defer cancel()
			if err := s.Gateway().Submit(ctx, false, msg.Confirmed); err != nil {
				c.sendError(errorCode(err), err.Error())
			}
		}()

	case ctrlTerminalInput:
		bridge := s.Terminal()
		if bridge == nil {
			c.sendError(domain.ErrCodeInvalidPayload, "session is not in terminal mode")
			return
		}
		if err := bridge.SendInput([]byte(msg.Data)); err != nil {
			c.sendError(errorCode(err), err.Error())
		}

	case ctrlTerminalResize:
		if bridge := s.Terminal(); bridge != nil {
			bridge.RequestResize(msg.Rows, msg.Cols)
		}

	case ctrlTerminalReplay:
		c.replayTerminal(msg.Cursor)

	case ctrlPing:
		// Application-level keepalive; protocol pings are handled by the pumps.

	default:
		c.sendError(domain.ErrCodeInvalidPayload, "unknown control message type: "+msg.Type)
	}
}

// replayTerminal resends the terminal backlog from the client's cursor
// directly to this client, bypassing the hub.
func (c *Client) replayTerminal(cursor int) {
	bridge := c.sess.Terminal()
	if bridge == nil {
		c.sendError(domain.ErrCodeInvalidPayload, "session is not in terminal mode")
		return
	}

	evs, next := bridge.ConsumeFrom(cursor)
	for _, ev := range evs {
		var be events.Event
		switch ev.Type {
		case session.TerminalError:
			be = events.NewTerminalErrorEvent(c.sess.ID, ev.Message)
		case session.TerminalExit:
			be = events.NewTerminalExitEvent(c.sess.ID)
		default:
			be = events.NewTerminalOutputEvent(c.sess.ID, ev.Data)
		}
		if err := c.Send(be); err != nil {
			return
		}
	}

	data, err := json.Marshal(map[string]interface{}{
		"event":   "terminal_cursor",
		"payload": map[string]int{"cursor": next},
	})
	if err == nil {
		_ = c.enqueue(data)
	}
}

// sendError delivers an error event to this client only.
func (c *Client) sendError(code, message string) {
	ev := events.NewErrorEvent(c.sess.ID, code, message)
	if err := c.Send(ev); err != nil {
		log.Debug().Str("client_id", c.id).Err(err).Msg("failed to send error event")
	}
}

// errorCode maps runtime errors to wire codes.
func errorCode(err error) string {
	if _, ok := domain.AsPauseSignal(err); ok {
		return domain.ErrCodeAssessmentPaused
	}
	switch {
	case errors.Is(err, domain.ErrSessionPaused):
		return domain.ErrCodeAssessmentPaused
	case errors.Is(err, domain.ErrBudgetExhausted):
		return domain.ErrCodeBudgetExhausted
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return domain.ErrCodeAlreadySubmitted
	case errors.Is(err, domain.ErrConfirmRequired):
		return domain.ErrCodeConfirmRequired
	case errors.Is(err, domain.ErrMissingToken):
		return domain.ErrCodeMissingToken
	case errors.Is(err, domain.ErrSessionNotFound):
		return domain.ErrCodeSessionNotFound
	case errors.Is(err, domain.ErrFileNotFound),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrNotPaused):
		return domain.ErrCodeInvalidPayload
	default:
		return domain.ErrCodeInternalError
	}
}
