// Package client provides the reconnecting WebSocket connection manager used by
// every realtime channel. Types mirror the relay wire protocol without
// importing relay packages.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
)

// MessageType identifies the kind of frame.
type MessageType string

// Inbound frame types.
const (
	MsgUserTyping        MessageType = "user_typing"
	MsgUserStoppedTyping MessageType = "user_stopped_typing"
	MsgOnlineUsers       MessageType = "online_users"
	MsgUserJoined        MessageType = "user_joined"
	MsgUserLeft          MessageType = "user_left"
	MsgConnected         MessageType = "connected"
	MsgParticipantUpdate MessageType = "participant_update"
	MsgChatMessage       MessageType = "chat_message"
	MsgReaction          MessageType = "reaction"
)

// Outbound frame types. chat_message and reaction are shared with the inbound set.
const (
	MsgTyping          MessageType = "typing"
	MsgStopTyping      MessageType = "stop_typing"
	MsgRequestSnapshot MessageType = "request_snapshot"
)

// ErrNotObject is returned by ParseFrame for valid JSON that is not an object.
var ErrNotObject = errors.New("frame is not a JSON object")

// Frame is one JSON text message. Type is the discriminant; Raw keeps the whole
// object so channel dispatch can decode the type-specific fields.
type Frame struct {
	Type MessageType
	Raw  json.RawMessage
}

// ParseFrame decodes the discriminant of a raw message and keeps a private
// copy of the bytes.
func ParseFrame(data []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return Frame{}, errors.New("invalid JSON")
		}
		return Frame{}, ErrNotObject
	}
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return Frame{}, err
	}
	raw := make(json.RawMessage, len(trimmed))
	copy(raw, trimmed)
	return Frame{Type: head.Type, Raw: raw}, nil
}

// Decode unmarshals the frame's fields into v.
func (f Frame) Decode(v any) error {
	return json.Unmarshal(f.Raw, v)
}

// MarshalJSON returns the original object, or a bare {"type":...} when the
// frame was built in code.
func (f Frame) MarshalJSON() ([]byte, error) {
	if len(f.Raw) == 0 {
		return json.Marshal(struct {
			Type MessageType `json:"type"`
		}{f.Type})
	}
	return f.Raw, nil
}
