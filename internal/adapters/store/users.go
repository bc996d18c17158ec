package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
)

// Users implements core.UserDirectory on sqlite.
type Users struct {
	db *sql.DB
}

func (u *Users) Lookup(ctx context.Context, id domain.UserID) (*core.Account, error) {
	var acc core.Account
	if err := u.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, active FROM users WHERE id = ?`,
		string(id)).Scan(&acc.Identity.UserID, &acc.Identity.Username, &acc.Identity.DisplayName, &acc.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying user: %w", err)
	}
	if acc.Identity.DisplayName == "" {
		acc.Identity.DisplayName = acc.Identity.Username
	}
	return &acc, nil
}

// Create inserts a user record. Used by management tooling and tests.
func (u *Users) Create(ctx context.Context, acc *core.Account) error {
	_, err := u.db.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, active) VALUES (?, ?, ?, ?)`,
		string(acc.Identity.UserID), acc.Identity.Username, acc.Identity.DisplayName, acc.Active)
	if err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}
