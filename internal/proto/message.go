package proto

import "encoding/json"

const (
	ProtocolVersion = 1

	InboundTypeJoin  = "join"
	InboundTypeLeave = "leave"
	InboundTypeMsg   = "msg"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventMessage  = "message"
	EventPresence = "presence"
	EventHistory  = "history"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// JoinData requests to join or leave a specific room.
type JoinData struct {
	RoomID int64 `json:"room_id"`
}

// MsgData is a chat message from the client.
type MsgData struct {
	RoomID  int64  `json:"room_id"`
	Content string `json:"content"`
}

// MessageData is a chat message delivered to clients.
type MessageData struct {
	ID       int64  `json:"id,omitempty"`
	RoomID   int64  `json:"room_id"`
	SenderID int64  `json:"sender_id"`
	Content  string `json:"content"`
	SentAt   int64  `json:"sent_at"`
}

// PresenceData notifies that an identity went online or offline.
type PresenceData struct {
	IdentityID int64 `json:"identity_id"`
	Online     bool  `json:"online"`
	ObservedAt int64 `json:"observed_at"`
}

// HistoryData delivers message history upon joining a room.
type HistoryData struct {
	Messages []MessageData `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// NewEvent builds an outbound event envelope with a marshaled payload.
func NewEvent(event string, payload any) (Outbound, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Outbound{}, err
	}
	return Outbound{Type: OutboundTypeEvent, Event: event, Data: data}, nil
}

// NewError builds an outbound error envelope.
func NewError(code, msg string) Outbound {
	return Outbound{Type: OutboundTypeError, Error: &Error{Code: code, Msg: msg}}
}
