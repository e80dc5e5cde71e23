package types

import (
	"encoding/json"
	"time"
)

// Event type names on the wire. Inbound types are sent by clients,
// outbound types by the relay.
const (
	EvJoinRoom    = "join-room"
	EvSendMessage = "send-message"
	EvLeaveRoom   = "leave-room"
	EvGetRoomInfo = "get-room-info"

	EvRoomJoined = "room-joined"
	EvUserJoined = "user-joined"
	EvUserLeft   = "user-left"
	EvNewMessage = "new-message"
	EvRoomLeft   = "room-left"
	EvRoomInfo   = "room-info"
	EvError      = "error"
)

// ClientEvent is the inbound envelope. Payload stays raw until the
// event type is known.
type ClientEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerEvent is the outbound envelope.
type ServerEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type JoinRoom struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

type SendMessage struct {
	RoomID string `json:"room_id"`
	Body   string `json:"body"`
}

type GetRoomInfo struct {
	RoomID string `json:"room_id"`
}

// Member is one room occupant as shown to clients.
type Member struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

type RoomJoined struct {
	RoomID  string   `json:"room_id"`
	Members []Member `json:"members"`
	Message string   `json:"message"`
}

type UserJoined struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
}

type UserLeft struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
}

type NewMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

type RoomLeft struct {
	Message string `json:"message"`
}

type RoomInfo struct {
	RoomID  string   `json:"room_id"`
	Members []Member `json:"members"`
}

type ErrorInfo struct {
	Message string `json:"message"`
}
