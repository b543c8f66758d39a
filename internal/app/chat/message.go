/*
Package chat contains the core logic for the real-time presence layer: live connections,
the user presence registry, and the routing of chat events between users.

This file defines the wire protocol. Every frame is a JSON object whose "type" field
selects one of a closed set of inbound events or outbound replies.
*/
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType is the discriminator carried in the "type" field of every frame.
type MessageType string

// Inbound frame types.
const (
	TypeAuth        MessageType = "auth"
	TypeJoinChat    MessageType = "join_chat"
	TypeMessage     MessageType = "message"
	TypeMessageRead MessageType = "message_read"
	TypePing        MessageType = "ping"
)

// Outbound frame types.
const (
	TypeAuthenticated     MessageType = "authenticated"
	TypeJoinedChat        MessageType = "joined_chat"
	TypeNewMessage        MessageType = "new_message"
	TypeMessageSent       MessageType = "message_sent"
	TypeMessageReadUpdate MessageType = "message_read_update"
	TypePong              MessageType = "pong"
)

var (
	// ErrMalformedFrame is returned when a frame is not a JSON object or its payload does not fit its type.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownType is returned for a well-formed frame whose type is not part of the protocol.
	ErrUnknownType = errors.New("unknown frame type")

	// ErrMissingField is returned when a required payload field is absent or empty.
	ErrMissingField = errors.New("missing required field")
)

// inboundEvent is implemented by every decoded client frame. Each event handles itself,
// so a new frame type cannot be wired into the decoder without a handler.
type inboundEvent interface {
	handle(d *Dispatcher, c *Connection)
}

// AuthEvent binds the connection to a user identity.
type AuthEvent struct {
	UserID string `json:"userId"`
	Token  string `json:"token,omitempty"`
}

// JoinChatEvent scopes the connection to a booking conversation.
type JoinChatEvent struct {
	BookingID json.RawMessage `json:"bookingId"`
}

// ChatMessageEvent relays a chat message to every live connection of the receiver.
type ChatMessageEvent struct {
	ReceiverID string          `json:"receiverId"`
	Data       json.RawMessage `json:"data"`
}

// MessageReadEvent notifies the original sender that messages were read.
type MessageReadEvent struct {
	SenderID   string          `json:"senderId"`
	MessageIDs json.RawMessage `json:"messageIds"`
}

// PingEvent is an application-level liveness probe.
type PingEvent struct{}

// decoders maps each inbound wire type to a function producing its typed event.
var decoders = map[MessageType]func(raw []byte) (inboundEvent, error){
	TypeAuth: func(raw []byte) (inboundEvent, error) {
		var e AuthEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: auth: %v", ErrMalformedFrame, err)
		}
		if e.UserID == "" {
			return nil, fmt.Errorf("%w: auth.userId", ErrMissingField)
		}
		return &e, nil
	},
	TypeJoinChat: func(raw []byte) (inboundEvent, error) {
		var e JoinChatEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: join_chat: %v", ErrMalformedFrame, err)
		}
		return &e, nil
	},
	TypeMessage: func(raw []byte) (inboundEvent, error) {
		var e ChatMessageEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: message: %v", ErrMalformedFrame, err)
		}
		return &e, nil
	},
	TypeMessageRead: func(raw []byte) (inboundEvent, error) {
		var e MessageReadEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: message_read: %v", ErrMalformedFrame, err)
		}
		return &e, nil
	},
	TypePing: func(raw []byte) (inboundEvent, error) {
		return &PingEvent{}, nil
	},
}

// decodeInbound parses a raw frame into its typed event.
func decodeInbound(raw []byte) (inboundEvent, MessageType, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if envelope.Type == "" {
		return nil, "", fmt.Errorf("%w: type", ErrMissingField)
	}

	decode, ok := decoders[envelope.Type]
	if !ok {
		return nil, envelope.Type, fmt.Errorf("%w: %q", ErrUnknownType, envelope.Type)
	}

	event, err := decode(raw)
	return event, envelope.Type, err
}

// messageID extracts the "id" member of a chat message body, or JSON null when absent.
func messageID(data json.RawMessage) json.RawMessage {
	var body struct {
		ID json.RawMessage `json:"id"`
	}
	if len(data) == 0 || json.Unmarshal(data, &body) != nil || len(body.ID) == 0 {
		return json.RawMessage("null")
	}
	return body.ID
}

// Outbound frames.

// AuthenticatedFrame confirms a successful auth.
type AuthenticatedFrame struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"userId"`
}

// JoinedChatFrame confirms a join_chat.
type JoinedChatFrame struct {
	Type      MessageType     `json:"type"`
	BookingID json.RawMessage `json:"bookingId"`
}

// NewMessageFrame carries a relayed chat message to the receiver.
type NewMessageFrame struct {
	Type    MessageType     `json:"type"`
	Message json.RawMessage `json:"message"`
}

// MessageSentFrame acknowledges a message to its sender.
type MessageSentFrame struct {
	Type      MessageType     `json:"type"`
	MessageID json.RawMessage `json:"messageId"`
}

// MessageReadUpdateFrame tells the sender which messages were read.
type MessageReadUpdateFrame struct {
	Type       MessageType     `json:"type"`
	MessageIDs json.RawMessage `json:"messageIds"`
}

// PongFrame answers a ping.
type PongFrame struct {
	Type MessageType `json:"type"`
}

// orNull substitutes JSON null for an absent raw value so it still encodes.
func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
