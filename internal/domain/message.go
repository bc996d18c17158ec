package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const MaxMessageLen = 2000

var (
	ErrMessageEmpty   = errors.New("message empty")
	ErrMessageTooLong = errors.New("message too long")
)

type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageSystem MessageKind = "system"
)

// ChatMessage is the append-only chat record. ID and CreatedAt are assigned
// by the message store on append.
type ChatMessage struct {
	ID        string
	RoomID    RoomID
	Author    Identity
	Content   string
	Kind      MessageKind
	CreatedAt time.Time
}

func NewChatMessage(author Identity, room RoomID, content string) (*ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if len(content) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}
	return &ChatMessage{
		RoomID:  room,
		Author:  author,
		Content: content,
		Kind:    MessageText,
	}, nil
}

// TimeAgo renders the display string clients show next to a message.
func (m *ChatMessage) TimeAgo(now time.Time) string {
	d := now.Sub(m.CreatedAt)
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours())/24)
	case d >= time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return "Just now"
	}
}
