package client

import "time"

// EventKind identifies one of the closed set of events the multiplexer delivers.
type EventKind int

const (
	// EventConnected fires when the transport session comes up.
	EventConnected EventKind = iota
	// EventDisconnected fires when the transport session goes away, either
	// deliberately or after retries are exhausted.
	EventDisconnected
	// EventMessageReceived carries one chat message.
	EventMessageReceived
	// EventPresenceChanged carries an online/offline flip for one identity.
	EventPresenceChanged
	// EventConnectionError carries a transport or protocol error.
	EventConnectionError
)

// String returns the string representation of an EventKind.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventMessageReceived:
		return "messageReceived"
	case EventPresenceChanged:
		return "presenceChanged"
	case EventConnectionError:
		return "connectionError"
	default:
		return "unknown"
	}
}

// ChatMessage is one message delivered by the server. Never mutated client-side.
type ChatMessage struct {
	ID       int64
	RoomID   int64
	SenderID int64
	Content  string
	SentAt   time.Time
}

// PresenceUpdate reports an identity going online or offline.
// Updates are last-writer-wins per identity.
type PresenceUpdate struct {
	IdentityID int64
	Online     bool
	ObservedAt time.Time
}

// Event is the tagged union handed to subscribers. Exactly the field
// matching Kind is set; the others are zero.
type Event struct {
	Kind     EventKind
	Message  *ChatMessage
	Presence *PresenceUpdate
	Err      error
}
