package core

// Client is a connected chat participant as seen by the core layer.
// One Client corresponds to one live transport connection.
type Client struct {
	ID         string
	IdentityID int64
	Commands   chan *Command
	Events     chan *Event

	rooms map[int64]struct{}
	done  chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, identityID int64) *Client {
	return &Client{
		ID:         id,
		IdentityID: identityID,
		Commands:   make(chan *Command, 8),
		Events:     make(chan *Event, 16),
		rooms:      make(map[int64]struct{}),
		done:       make(chan struct{}),
	}
}
