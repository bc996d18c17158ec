// Package core defines the capability boundaries the session layer is written
// against: the abstract signal connection and the external collaborators
// (identity resolver, room store, message store). Everything here is an
// interface so room and broadcast logic is written once per capability, not
// per transport.
package core

import (
	"context"

	"github.com/parleyhq/parley/internal/domain"
)

// Frame is an encoded wire envelope ready to be written to a transport.
type Frame []byte

// ConnID identifies one live connection. Opaque and process-unique.
type ConnID string

// SignalConnection abstracts a system messaging transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// IdentityResolver turns the opaque handshake token into an identity, once,
// at connect time. A failed resolution is terminal for the connection.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (domain.Identity, error)
}

// RoomStore is the persisted-room collaborator. Find returns
// domain.ErrRoomNotFound when the code does not exist. Membership here is
// user-level: it is added on first join and removed only when the user's last
// live connection leaves the room.
type RoomStore interface {
	Find(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	AddMember(ctx context.Context, id domain.RoomID, user domain.UserID) error
	RemoveMember(ctx context.Context, id domain.RoomID, user domain.UserID) error
	TouchActivity(ctx context.Context, id domain.RoomID) error
	IncrementMessageCount(ctx context.Context, id domain.RoomID) error
}

// MessageStore appends a chat message and returns the stored record with the
// server-assigned ID and timestamp. Durability precedes visibility: nothing
// is broadcast until Append returns.
type MessageStore interface {
	Append(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error)
}

// Account is a persisted user record. Inactive accounts fail authentication.
type Account struct {
	Identity domain.Identity
	Active   bool
}

// UserDirectory resolves the account behind a token's subject.
type UserDirectory interface {
	Lookup(ctx context.Context, id domain.UserID) (*Account, error)
}
