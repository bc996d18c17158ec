package domain

import (
	"math/rand"
	"strings"
	"time"
)

type RoomID string

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomCodeLen matches the short shareable codes rooms are addressed by.
const RoomCodeLen = 5

// NormalizeRoomID folds an inbound room code to its canonical upper-case form.
func NormalizeRoomID(raw string) RoomID {
	return RoomID(strings.ToUpper(strings.TrimSpace(raw)))
}

// NewRoomID generates a fresh shareable room code.
func NewRoomID() RoomID {
	b := make([]byte, RoomCodeLen)
	for i := range b {
		b[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return RoomID(b)
}

// Room mirrors the persisted room record. Members is the user-level
// membership, not the set of live connections.
type Room struct {
	ID              RoomID
	Name            string
	CreatedBy       UserID
	IsPrivate       bool
	AllowGuests     bool
	MaxParticipants int
	MessageCount    int
	LastActivity    time.Time
	Members         []UserID
}

func (r *Room) HasMember(id UserID) bool {
	for _, m := range r.Members {
		if m == id {
			return true
		}
	}
	return false
}

// CanEnter reports whether a user may join: members always can, everyone else
// only when the room allows guests.
func (r *Room) CanEnter(id UserID) bool {
	return r.HasMember(id) || r.AllowGuests
}
