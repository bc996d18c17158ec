// Package domain contains entities without transport or lifecycle logic,
// just meta-data and the validation shared by every layer.
package domain

import "errors"

const (
	MaxUsernameLen = 36
)

var (
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameTooLong = errors.New("username too long")
)

type UserID string

// Identity is resolved once by the authentication gate at connect time and
// stays immutable for the lifetime of a connection.
type Identity struct {
	UserID      UserID `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// NewIdentity is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewIdentity(id UserID, username, displayName string) (Identity, error) {
	if len(username) == 0 {
		return Identity{}, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return Identity{}, ErrUsernameTooLong
	}
	if displayName == "" {
		displayName = username
	}
	return Identity{UserID: id, Username: username, DisplayName: displayName}, nil
}
