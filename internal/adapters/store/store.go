// Package store provides the sqlite-backed implementations of the room,
// message and user collaborators.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a queried record does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	created_by       TEXT NOT NULL DEFAULT '',
	is_private       INTEGER NOT NULL DEFAULT 0,
	allow_guests     INTEGER NOT NULL DEFAULT 1,
	max_participants INTEGER NOT NULL DEFAULT 50,
	message_count    INTEGER NOT NULL DEFAULT 0,
	last_activity    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	room_id     TEXT NOT NULL,
	author_id   TEXT NOT NULL,
	author_name TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL,
	kind        TEXT NOT NULL DEFAULT 'text',
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages (room_id, created_at);

CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	username     TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	active       INTEGER NOT NULL DEFAULT 1
);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Rooms() *Rooms       { return &Rooms{db: s.db} }
func (s *Store) Messages() *Messages { return &Messages{db: s.db} }
func (s *Store) Users() *Users       { return &Users{db: s.db} }
