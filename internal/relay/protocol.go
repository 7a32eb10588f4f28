package relay

import "time"

// MessageType identifies the kind of frame. Values match the client package.
type MessageType string

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

	MsgTyping          MessageType = "typing"
	MsgStopTyping      MessageType = "stop_typing"
	MsgRequestSnapshot MessageType = "request_snapshot"
)

const maxChatLength = 2000

// UserRef is the identity fragment carried by presence and chat frames.
type UserRef struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type inboundFrame struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
	Emoji   string      `json:"emoji"`
}

type userFrame struct {
	Type MessageType `json:"type"`
	UserRef
}

type onlineUsersFrame struct {
	Type  MessageType `json:"type"`
	Users []UserRef   `json:"users"`
}

type countFrame struct {
	Type             MessageType `json:"type"`
	ParticipantCount int         `json:"participant_count"`
	Count            int         `json:"count"`
}

type chatFrame struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id"`
	UserRef
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type reactionFrame struct {
	Type MessageType `json:"type"`
	UserRef
	Emoji string `json:"emoji"`
}

// Notification is pushed verbatim on the notifications socket. Kind is the
// frame type.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
