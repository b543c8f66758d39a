/*
Package chat contains the core logic for the real-time presence layer: live connections,
the user presence registry, and the routing of chat events between users.

This file defines the Dispatcher, which runs the read loop of every Connection, decodes
each inbound frame into its typed event, applies it, and owns the cleanup path when the
transport closes or fails.
*/
package chat

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"skillswap/internal/configs"
	"skillswap/internal/pkg/auth/jwt"
	"skillswap/internal/pkg/logx"
)

const (
	// DefaultPongWait is the read deadline extended by every transport pong.
	DefaultPongWait = 60 * time.Second

	// DefaultMaxFrameBytes is the largest inbound frame accepted.
	DefaultMaxFrameBytes = 8192
)

// DispatcherConfig holds the per-connection protocol settings.
type DispatcherConfig struct {
	// AuthMode is configs.AuthModeTrust or configs.AuthModeVerified.
	AuthMode string

	// JWTSecret verifies session tokens when AuthMode is verified.
	JWTSecret string

	// PongWait is how long the reader waits for any traffic before giving up on the peer.
	PongWait time.Duration

	// MaxFrameBytes bounds the size of a single inbound frame.
	MaxFrameBytes int64
}

// Dispatcher routes frames between connections through the Registry.
type Dispatcher struct {
	registry *Registry
	cfg      DispatcherConfig
	logger   zerolog.Logger
}

// NewDispatcher constructs a Dispatcher bound to registry.
func NewDispatcher(registry *Registry, cfg DispatcherConfig) *Dispatcher {
	if cfg.AuthMode == "" {
		cfg.AuthMode = configs.AuthModeTrust
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = DefaultPongWait
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = DefaultMaxFrameBytes
	}

	return &Dispatcher{
		registry: registry,
		cfg:      cfg,
		logger:   logx.Component("Dispatcher"),
	}
}

// Serve runs the connection until its transport closes or fails. Frames are handled
// one at a time in arrival order. It blocks and always leaves the connection Closed
// and out of the Registry.
func (d *Dispatcher) Serve(c *Connection) {
	defer d.cleanup(c)

	d.logger.Debug().Str("conn_id", c.ID()).Msg("Serving connection.")

	go c.writePump((d.cfg.PongWait * 9) / 10)

	c.conn.SetReadLimit(d.cfg.MaxFrameBytes)

	if err := c.conn.SetReadDeadline(time.Now().Add(d.cfg.PongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(d.cfg.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection read error")
			}
			return
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(d.cfg.PongWait)); err != nil {
			return
		}

		d.dispatch(c, frame)
	}
}

// cleanup unregisters the connection if it was bound and closes it.
func (d *Dispatcher) cleanup(c *Connection) {
	if userID := c.UserID(); userID != "" {
		d.registry.Unregister(userID, c)
	}
	c.Close()

	c.logger.Info().Str("user_id", c.UserID()).Msg("Connection closed.")
}

// dispatch decodes one frame and applies it. Decoding failures are logged and dropped.
func (d *Dispatcher) dispatch(c *Connection, frame []byte) {
	event, msgType, err := decodeInbound(frame)
	if err != nil {
		logEvent := c.logger.Warn().Err(err)
		if errors.Is(err, ErrUnknownType) {
			logEvent = c.logger.Info().Err(err)
		}
		logEvent.
			Str("msg_type", string(msgType)).
			Int("frame_bytes", len(frame)).
			Msg("Dropping inbound frame")
		return
	}

	event.handle(d, c)
}

func (e *AuthEvent) handle(d *Dispatcher, c *Connection) {
	if d.cfg.AuthMode == configs.AuthModeVerified {
		if err := jwt.VerifyUser(e.Token, e.UserID, d.cfg.JWTSecret); err != nil {
			c.logger.Warn().Err(err).Str("claimed_user_id", e.UserID).Msg("Auth rejected: session token not valid for user")
			return
		}
	}

	if !c.bind(e.UserID) {
		c.logger.Warn().
			Str("bound_user_id", c.UserID()).
			Str("claimed_user_id", e.UserID).
			Msg("Auth ignored: connection already bound or closed")
		return
	}

	d.registry.Register(e.UserID, c)
	c.logger.Info().Str("user_id", e.UserID).Msg("Connection authenticated.")

	c.SendJSON(AuthenticatedFrame{Type: TypeAuthenticated, UserID: e.UserID})
}

func (e *JoinChatEvent) handle(d *Dispatcher, c *Connection) {
	c.setRoom(roomKey(e.BookingID))

	c.SendJSON(JoinedChatFrame{Type: TypeJoinedChat, BookingID: orNull(e.BookingID)})
}

func (e *ChatMessageEvent) handle(d *Dispatcher, c *Connection) {
	data := orNull(e.Data)

	if e.ReceiverID != "" {
		delivered, err := d.registry.DeliverJSON(e.ReceiverID, NewMessageFrame{Type: TypeNewMessage, Message: data})
		if err != nil {
			c.logger.Error().Err(err).Msg("Failed to build new_message frame")
		} else {
			c.logger.Debug().
				Str("receiver_id", e.ReceiverID).
				Int("delivered", delivered).
				Msg("Message relayed.")
		}
	}

	c.SendJSON(MessageSentFrame{Type: TypeMessageSent, MessageID: messageID(e.Data)})
}

func (e *MessageReadEvent) handle(d *Dispatcher, c *Connection) {
	if e.SenderID == "" {
		return
	}

	update := MessageReadUpdateFrame{Type: TypeMessageReadUpdate, MessageIDs: orNull(e.MessageIDs)}
	if _, err := d.registry.DeliverJSON(e.SenderID, update); err != nil {
		c.logger.Error().Err(err).Msg("Failed to build message_read_update frame")
	}
}

func (e *PingEvent) handle(d *Dispatcher, c *Connection) {
	c.SendJSON(PongFrame{Type: TypePong})
}

// roomKey renders a booking identifier as a plain string, unquoting JSON strings.
func roomKey(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
