package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/domain/ports"
	"github.com/hirebench/sessiond/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 15 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 90 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	// Outbound buffer. Clock ticks arrive once a second; terminal output
	// can burst, so the buffer is generous before the hub drops us.
	sendBufferSize = 1024
)

// Client is one WebSocket connection bound to a session. It implements
// ports.Subscriber so the hub can feed it the session's event stream, and
// it dispatches inbound control messages to the session's components.
type Client struct {
	id      string
	conn    *websocket.Conn
	sess    *session.Session
	send    chan []byte
	done    chan struct{}
	onClose func(clientID string)

	closeOnce sync.Once
}

// NewClient creates a client for an upgraded connection.
func NewClient(conn *websocket.Conn, sess *session.Session, onClose func(clientID string)) *Client {
	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		sess:    sess,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Send queues a serialized event for delivery. A full buffer drops the
// event rather than blocking the hub.
func (c *Client) Send(event events.Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) error {
	select {
	case <-c.done:
		return nil
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		log.Warn().Str("client_id", c.id).Msg("client send buffer full, dropping event")
		return nil
	}
}

// SendSnapshot pushes the session's current runtime state so the client
// can render without replaying history.
func (c *Client) SendSnapshot() {
	ev := events.NewForSession(events.EventTypeSnapshot, c.sess.ID, c.sess.RuntimeState())
	if err := c.Send(ev); err != nil {
		log.Debug().Str("client_id", c.id).Err(err).Msg("failed to send snapshot")
	}
}

// Close shuts the client down. Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c.id)
		}
	})
	return nil
}

// Done returns a channel closed when the client disconnects.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readPump reads control messages from the connection and dispatches them.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Str("client_id", c.id).Err(err).Msg("websocket read error")
			}
			return
		}
		c.dispatch(message)
	}
}

// writePump writes queued events and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

var _ ports.Subscriber = (*Client)(nil)
