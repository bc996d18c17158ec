package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/parleyhq/parley/internal/domain"
)

// Messages implements core.MessageStore on sqlite.
type Messages struct {
	db *sql.DB
}

// Append stores a chat message and returns the record with the
// server-assigned ID and timestamp.
func (m *Messages) Append(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	stored := *msg
	stored.ID = ulid.Make().String()
	stored.CreatedAt = time.Now().UTC()
	if stored.Kind == "" {
		stored.Kind = domain.MessageText
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, author_id, author_name, display_name, content, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, string(stored.RoomID), string(stored.Author.UserID),
		stored.Author.Username, stored.Author.DisplayName,
		stored.Content, string(stored.Kind), stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error inserting message: %w", err)
	}
	return &stored, nil
}

// Recent returns up to limit messages for a room, newest first. Used by the
// history endpoint and tests.
func (m *Messages) Recent(ctx context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, room_id, author_id, author_name, display_name, content, kind, created_at
		FROM messages WHERE room_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		string(room), limit)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Author.UserID, &msg.Author.Username,
			&msg.Author.DisplayName, &msg.Content, &msg.Kind, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return out, nil
}
