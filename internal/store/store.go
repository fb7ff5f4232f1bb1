package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Role defines the privilege tier of an identity.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// Identity represents an authenticated principal.
//
// Role and the approved/enabled flags are the sole authorization inputs:
// approved gates dashboard access, enabled gates login entirely.
type Identity struct {
	ID           int64
	Username     string
	PasswordHash string
	DisplayName  string
	Role         Role
	Approved     bool
	Enabled      bool
	IsOnline     bool
	LastSeenAt   *time.Time
	CreatedAt    time.Time
}

// IsAdmin reports whether the identity holds admin privileges.
// Superadmin is a strict superset of admin.
func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin || i.Role == RoleSuperadmin
}

// Room represents a chat room.
type Room struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID       int64
	RoomID   int64
	SenderID int64
	Content  string
	SentAt   time.Time
}

// IdentityStore handles identity persistence.
type IdentityStore interface {
	// CreateIdentity creates a new identity with hashed password.
	CreateIdentity(ctx context.Context, username, passwordHash, displayName string, role Role, approved bool) (*Identity, error)

	// GetIdentityByID retrieves an identity by ID.
	GetIdentityByID(ctx context.Context, id int64) (*Identity, error)

	// GetIdentityByUsername retrieves an identity by username.
	GetIdentityByUsername(ctx context.Context, username string) (*Identity, error)

	// ListIdentities lists all identities ordered by creation time.
	ListIdentities(ctx context.Context) ([]*Identity, error)

	// CountIdentities returns the total number of identities.
	CountIdentities(ctx context.Context) (int64, error)

	// SetApproved updates the approved flag.
	SetApproved(ctx context.Context, id int64, approved bool) error

	// SetRole updates the role.
	SetRole(ctx context.Context, id int64, role Role) error

	// SetEnabled updates the enabled flag.
	SetEnabled(ctx context.Context, id int64, enabled bool) error

	// SetOnline updates the online flag, last-writer-wins. Going offline
	// also records the last seen timestamp.
	SetOnline(ctx context.Context, id int64, online bool) error
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom creates a new room.
	CreateRoom(ctx context.Context, name string) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// ListRooms lists all rooms.
	ListRooms(ctx context.Context) ([]*Room, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves messages from a room, newest last.
	// If beforeID is provided, returns messages older than that ID.
	ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	IdentityStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
