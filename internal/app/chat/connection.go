/*
Package chat contains the core logic for the real-time presence layer: live connections,
the user presence registry, and the routing of chat events between users.

This file defines the Connection struct, which wraps one live WebSocket. It holds the
identity bound by auth, the joined booking conversation, the lifecycle state, and a
bounded outbound queue drained by a single writer goroutine.
*/
package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"skillswap/internal/pkg/logx"
	"skillswap/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// DefaultSendBufferSize is the outbound queue capacity used when none is configured.
	DefaultSendBufferSize = 256

	// WsCloseCodeQueueOverflow is sent when a peer cannot keep up with its outbound queue.
	WsCloseCodeQueueOverflow = 4008
)

// State is the lifecycle state of a Connection. It only moves forward.
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Connection represents one live WebSocket and the identity bound to it.
type Connection struct {
	// random identifier used in logs.
	id string

	// underlying WebSocket connection object. Nil only in tests.
	conn *websocket.Conn

	// mu protects userID, roomID and state, and serializes queue pushes against Close.
	mu     sync.Mutex
	userID string
	roomID string
	state  State

	// a buffered channel used to queue frames waiting to be written.
	send chan []byte

	// closed when the connection is closed; stops the writer.
	done      chan struct{}
	closeOnce sync.Once

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewConnection constructs an unauthenticated Connection around wsConn.
func NewConnection(wsConn *websocket.Conn, sendBufferSize int) *Connection {
	if sendBufferSize <= 0 {
		sendBufferSize = DefaultSendBufferSize
	}

	id := randx.ConnectionID()

	return &Connection{
		id:     id,
		conn:   wsConn,
		state:  StateUnauthenticated,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logx.Logger().With().Str("conn_id", id).Logger(),
	}
}

// ID returns the connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// UserID returns the bound user identifier, or "" before auth.
func (c *Connection) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// RoomID returns the joined booking conversation, or "" if none.
func (c *Connection) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsOpen reports whether frames can still be queued on the connection.
func (c *Connection) IsOpen() bool {
	return c.State() != StateClosed
}

// bind sets the user identity once. Re-binding the same identity is accepted;
// a different identity, or a closed connection, is refused.
func (c *Connection) bind(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == StateClosed:
		return false
	case c.userID != "" && c.userID != userID:
		return false
	}

	c.userID = userID
	c.state = StateAuthenticated
	return true
}

func (c *Connection) setRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// Send queues a frame for writing. It returns false when the connection is closed
// or its queue is full; a full queue closes the connection.
func (c *Connection) Send(frame []byte) bool {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return false
	}

	select {
	case c.send <- frame:
		c.mu.Unlock()
		return true
	default:
	}
	c.mu.Unlock()

	c.logger.Warn().Int("queue_len", len(c.send)).Msg("Outbound queue full, disconnecting slow peer.")
	c.closeWith(WsCloseCodeQueueOverflow, "outbound queue overflow")
	return false
}

// SendJSON marshals v and queues it.
func (c *Connection) SendJSON(v any) bool {
	frame, err := json.Marshal(v)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling frame for connection")
		return false
	}
	return c.Send(frame)
}

// Close moves the connection to Closed and releases the transport. Safe to call repeatedly.
func (c *Connection) Close() {
	c.closeWith(websocket.CloseNormalClosure, "")
}

func (c *Connection) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		close(c.done)
		c.mu.Unlock()

		if c.conn == nil {
			return
		}

		// Close frames are best-effort; the peer may already be gone.
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(writeWait))

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error")
		}
	})
}

// writePump writes queued frames and periodic pings until the connection closes.
func (c *Connection) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing frame")
				c.Close()
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing ping")
				c.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}
