package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomMessage notifies clients about a chat message in a room.
	EventRoomMessage EventKind = iota
	// EventPresence notifies clients about an identity going online or offline.
	EventPresence
	// EventHistory delivers message history to a client upon joining a room.
	EventHistory
	// EventError notifies clients about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Message  *Message
	Messages []*Message // for EventHistory
	Presence *Presence
	Error    *CoreError
}

// Message is the domain model for a chat message as delivered to clients.
// Never mutated after dispatch.
type Message struct {
	ID       int64
	RoomID   int64
	SenderID int64
	Content  string
	SentAt   time.Time
}

// Presence describes an identity's online flag, last-writer-wins.
type Presence struct {
	IdentityID int64
	Online     bool
	ObservedAt time.Time
}
