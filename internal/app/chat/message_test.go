package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	event, msgType, err := decodeInbound([]byte(`{"type":"auth","userId":"u1"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeAuth, msgType)
	assert.Equal(t, &AuthEvent{UserID: "u1"}, event)

	event, _, err = decodeInbound([]byte(`{"type":"message","receiverId":"u2","data":{"id":"m1","text":"hi"}}`))
	require.NoError(t, err)
	msg, ok := event.(*ChatMessageEvent)
	require.True(t, ok)
	assert.Equal(t, "u2", msg.ReceiverID)
	assert.JSONEq(t, `{"id":"m1","text":"hi"}`, string(msg.Data))

	event, _, err = decodeInbound([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.IsType(t, &PingEvent{}, event)
}

func TestDecodeInboundErrors(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `hello`, ErrMalformedFrame},
		{"json array", `[1,2]`, ErrMalformedFrame},
		{"missing type", `{"userId":"u1"}`, ErrMissingField},
		{"unknown type", `{"type":"typing"}`, ErrUnknownType},
		{"auth without user", `{"type":"auth"}`, ErrMissingField},
		{"auth wrong field type", `{"type":"auth","userId":7}`, ErrMalformedFrame},
		{"read with bad sender", `{"type":"message_read","senderId":{}}`, ErrMalformedFrame},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := decodeInbound([]byte(tc.frame))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestMessageID(t *testing.T) {
	assert.Equal(t, `"m1"`, string(messageID(json.RawMessage(`{"id":"m1"}`))))
	assert.Equal(t, `42`, string(messageID(json.RawMessage(`{"id":42}`))))
	assert.Equal(t, `null`, string(messageID(json.RawMessage(`{"text":"no id"}`))))
	assert.Equal(t, `null`, string(messageID(nil)))
	assert.Equal(t, `null`, string(messageID(json.RawMessage(`"just a string"`))))
}

func TestRoomKey(t *testing.T) {
	assert.Equal(t, "b-1", roomKey(json.RawMessage(`"b-1"`)))
	assert.Equal(t, "17", roomKey(json.RawMessage(`17`)))
	assert.Equal(t, "", roomKey(json.RawMessage(`null`)))
	assert.Equal(t, "", roomKey(nil))
}
