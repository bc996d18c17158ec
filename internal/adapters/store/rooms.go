package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/domain"
)

// Rooms implements core.RoomStore on sqlite.
type Rooms struct {
	db *sql.DB
}

func (r *Rooms) Find(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	query := `
		SELECT id, name, created_by, is_private, allow_guests, max_participants, message_count, last_activity
		FROM rooms WHERE id = ?
	`
	var room domain.Room
	if err := r.db.QueryRowContext(ctx, query, string(id)).Scan(
		&room.ID, &room.Name, &room.CreatedBy, &room.IsPrivate,
		&room.AllowGuests, &room.MaxParticipants, &room.MessageCount, &room.LastActivity,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("error querying room: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM room_members WHERE room_id = ?`, string(id))
	if err != nil {
		return nil, fmt.Errorf("error querying members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid domain.UserID
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("error scanning member: %w", err)
		}
		room.Members = append(room.Members, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return &room, nil
}

func (r *Rooms) AddMember(ctx context.Context, id domain.RoomID, user domain.UserID) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO room_members (room_id, user_id) VALUES (?, ?)`,
		string(id), string(user))
	if err != nil {
		return fmt.Errorf("error adding member: %w", err)
	}
	return nil
}

func (r *Rooms) RemoveMember(ctx context.Context, id domain.RoomID, user domain.UserID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM room_members WHERE room_id = ? AND user_id = ?`,
		string(id), string(user))
	if err != nil {
		return fmt.Errorf("error removing member: %w", err)
	}
	return nil
}

func (r *Rooms) TouchActivity(ctx context.Context, id domain.RoomID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET last_activity = ? WHERE id = ?`,
		time.Now().UTC(), string(id))
	if err != nil {
		return fmt.Errorf("error touching activity: %w", err)
	}
	return nil
}

func (r *Rooms) IncrementMessageCount(ctx context.Context, id domain.RoomID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET message_count = message_count + 1 WHERE id = ?`,
		string(id))
	if err != nil {
		return fmt.Errorf("error incrementing message count: %w", err)
	}
	return nil
}

// Create inserts a new room record. Used by management tooling and tests.
func (r *Rooms) Create(ctx context.Context, room *domain.Room) error {
	if room.ID == "" {
		room.ID = domain.NewRoomID()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rooms (id, name, created_by, is_private, allow_guests, max_participants)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(room.ID), room.Name, string(room.CreatedBy),
		room.IsPrivate, room.AllowGuests, room.MaxParticipants)
	if err != nil {
		return fmt.Errorf("error creating room: %w", err)
	}
	for _, m := range room.Members {
		if err := r.AddMember(ctx, room.ID, m); err != nil {
			return err
		}
	}
	return nil
}
