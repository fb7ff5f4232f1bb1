package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wardroom-app/wardroom/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL DEFAULT 'user',
	approved      BOOLEAN NOT NULL DEFAULT 0,
	enabled       BOOLEAN NOT NULL DEFAULT 1,
	is_online     BOOLEAN NOT NULL DEFAULT 0,
	last_seen_at  DATETIME,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    INTEGER NOT NULL,
	sender_id  INTEGER NOT NULL,
	content    TEXT NOT NULL,
	sent_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (sender_id) REFERENCES identities(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id DESC);

INSERT INTO rooms (name)
SELECT 'general' WHERE NOT EXISTS (SELECT 1 FROM rooms WHERE name = 'general');
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== IdentityStore implementation ====

const identityColumns = `id, username, password_hash, display_name, role, approved, enabled, is_online, last_seen_at, created_at`

func (s *SQLiteStore) scanIdentity(row *sql.Row) (*store.Identity, error) {
	var ident store.Identity
	var lastSeen sql.NullTime
	err := row.Scan(
		&ident.ID, &ident.Username, &ident.PasswordHash, &ident.DisplayName,
		&ident.Role, &ident.Approved, &ident.Enabled, &ident.IsOnline,
		&lastSeen, &ident.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	if lastSeen.Valid {
		ident.LastSeenAt = &lastSeen.Time
	}
	return &ident, nil
}

// CreateIdentity creates a new identity with hashed password.
func (s *SQLiteStore) CreateIdentity(ctx context.Context, username, passwordHash, displayName string, role store.Role, approved bool) (*store.Identity, error) {
	query := `
		INSERT INTO identities (username, password_hash, display_name, role, approved)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash, displayName, string(role), approved)
	if err != nil {
		return nil, fmt.Errorf("insert identity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetIdentityByID(ctx, id)
}

// GetIdentityByID retrieves an identity by ID.
func (s *SQLiteStore) GetIdentityByID(ctx context.Context, id int64) (*store.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = ?`
	return s.scanIdentity(s.db.QueryRowContext(ctx, query, id))
}

// GetIdentityByUsername retrieves an identity by username.
func (s *SQLiteStore) GetIdentityByUsername(ctx context.Context, username string) (*store.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE username = ?`
	return s.scanIdentity(s.db.QueryRowContext(ctx, query, username))
}

// ListIdentities lists all identities ordered by creation time.
func (s *SQLiteStore) ListIdentities(ctx context.Context) ([]*store.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	identities := make([]*store.Identity, 0)
	for rows.Next() {
		var ident store.Identity
		var lastSeen sql.NullTime
		if err := rows.Scan(
			&ident.ID, &ident.Username, &ident.PasswordHash, &ident.DisplayName,
			&ident.Role, &ident.Approved, &ident.Enabled, &ident.IsOnline,
			&lastSeen, &ident.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if lastSeen.Valid {
			ident.LastSeenAt = &lastSeen.Time
		}
		identities = append(identities, &ident)
	}
	return identities, rows.Err()
}

// CountIdentities returns the total number of identities.
func (s *SQLiteStore) CountIdentities(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// SetApproved updates the approved flag.
func (s *SQLiteStore) SetApproved(ctx context.Context, id int64, approved bool) error {
	return s.updateIdentity(ctx, `UPDATE identities SET approved = ? WHERE id = ?`, approved, id)
}

// SetRole updates the role.
func (s *SQLiteStore) SetRole(ctx context.Context, id int64, role store.Role) error {
	return s.updateIdentity(ctx, `UPDATE identities SET role = ? WHERE id = ?`, string(role), id)
}

// SetEnabled updates the enabled flag.
func (s *SQLiteStore) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.updateIdentity(ctx, `UPDATE identities SET enabled = ? WHERE id = ?`, enabled, id)
}

// SetOnline updates the online flag, last-writer-wins.
func (s *SQLiteStore) SetOnline(ctx context.Context, id int64, online bool) error {
	if online {
		return s.updateIdentity(ctx, `UPDATE identities SET is_online = 1 WHERE id = ?`, id)
	}
	return s.updateIdentity(ctx, `UPDATE identities SET is_online = 0, last_seen_at = ? WHERE id = ?`, time.Now().UTC(), id)
}

func (s *SQLiteStore) updateIdentity(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== RoomStore implementation ====

// CreateRoom creates a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string) (*store.Room, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO rooms (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetRoomByID(ctx, id)
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	var room store.Room
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM rooms WHERE id = ?`, id).
		Scan(&room.ID, &room.Name, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan room: %w", err)
	}
	return &room, nil
}

// ListRooms lists all rooms.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*store.Room, 0)
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in its ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room_id, sender_id, content, sent_at) VALUES (?, ?, ?, ?)`,
		msg.RoomID, msg.SenderID, msg.Content, msg.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// ListMessages retrieves messages from a room, newest last.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	query := `
		SELECT id, room_id, sender_id, content, sent_at
		FROM messages
		WHERE room_id = ?
	`
	args := []any{roomID}
	if beforeID != nil {
		query += ` AND id < ?`
		args = append(args, *beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
