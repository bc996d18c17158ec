package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewChatMessage(t *testing.T) {
	author := Identity{UserID: "u1", Username: "alice", DisplayName: "Alice"}

	tests := []struct {
		name    string
		content string
		want    string
		wantErr error
	}{
		{"plain", "hello", "hello", nil},
		{"trimmed", "  hello  ", "hello", nil},
		{"at length cap", strings.Repeat("x", MaxMessageLen), strings.Repeat("x", MaxMessageLen), nil},
		{"empty", "", "", ErrMessageEmpty},
		{"whitespace only", " \t\n ", "", ErrMessageEmpty},
		{"over length cap", strings.Repeat("x", MaxMessageLen+1), "", ErrMessageTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewChatMessage(author, "AAAAA", tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if msg.Content != tt.want {
				t.Errorf("content = %q, want %q", msg.Content, tt.want)
			}
			if msg.Kind != MessageText {
				t.Errorf("kind = %s, want %s", msg.Kind, MessageText)
			}
		})
	}
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		age  time.Duration
		want string
	}{
		{0, "Just now"},
		{59 * time.Second, "Just now"},
		{time.Minute, "1m ago"},
		{59 * time.Minute, "59m ago"},
		{time.Hour, "1h ago"},
		{23*time.Hour + 59*time.Minute, "23h ago"},
		{24 * time.Hour, "1d ago"},
		{72 * time.Hour, "3d ago"},
	}
	for _, tt := range tests {
		msg := &ChatMessage{CreatedAt: now.Add(-tt.age)}
		if got := msg.TimeAgo(now); got != tt.want {
			t.Errorf("TimeAgo(age=%v) = %q, want %q", tt.age, got, tt.want)
		}
	}
}
