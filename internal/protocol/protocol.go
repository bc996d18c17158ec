// Package protocol defines the wire envelope and the typed payloads exchanged
// over the signaling connection. Every frame is {"kind": <string>, "data":
// <object>}; peer-negotiation payloads stay opaque json.RawMessage end to end.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
)

// Inbound kinds.
const (
	KindJoinRoom         = "join-room"
	KindLeaveRoom        = "leave-room"
	KindChatMessage      = "chat-message"
	KindWebRTCSignal     = "webrtc-signal"
	KindWebRTCSignalRoom = "webrtc-signal-room"
	KindMediaStateChange = "media-state-change"
	KindScreenShareStart = "screen-share-start"
	KindScreenShareStop  = "screen-share-stop"
	KindTypingStart      = "typing-start"
	KindTypingStop       = "typing-stop"
	KindPing             = "ping"
)

// Outbound kinds.
const (
	KindRoomJoined           = "room-joined"
	KindRoomLeft             = "room-left"
	KindUserJoined           = "user-joined"
	KindUserLeft             = "user-left"
	KindPeerMediaStateChange = "peer-media-state-change"
	KindPeerScreenShareStart = "peer-screen-share-start"
	KindPeerScreenShareStop  = "peer-screen-share-stop"
	KindUserTyping           = "user-typing"
	KindError                = "error"
	KindPong                 = "pong"
	KindHeartbeat            = "heartbeat"
)

// Error codes carried in the data of an "error" frame.
const (
	CodeAuthenticationFailed = "authentication-failed"
	CodeProtocolError        = "protocol-error"
	CodeAuthorizationDenied  = "authorization-denied"
	CodeNotFound             = "not-found"
	CodePersistenceFailed    = "persistence-failed"
)

type Envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Encode marshals a payload into a ready-to-send frame.
func Encode(kind string, data any) (core.Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	b, err := json.Marshal(Envelope{Kind: kind, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	return core.Frame(b), nil
}

// Decode parses a raw frame into its envelope. A frame without a kind is a
// protocol error.
func Decode(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("frame missing kind")
	}
	return &env, nil
}

// Participant is one live connection's identity as shown in room snapshots.
// Two connections of the same user produce two entries.
type Participant struct {
	UserID      domain.UserID `json:"userId"`
	Username    string        `json:"username"`
	DisplayName string        `json:"displayName"`
}

// Inbound payloads.

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"roomId,omitempty"`
}

type ChatMessageRequest struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type SignalRequest struct {
	TargetUserID string          `json:"targetUserId,omitempty"`
	RoomID       string          `json:"roomId,omitempty"`
	Signal       json.RawMessage `json:"signal"`
}

type MediaStateRequest struct {
	RoomID    string `json:"roomId,omitempty"`
	MediaType string `json:"mediaType"`
	IsEnabled bool   `json:"isEnabled"`
}

type ScreenShareRequest struct {
	RoomID string `json:"roomId,omitempty"`
}

type TypingRequest struct {
	RoomID string `json:"roomId,omitempty"`
}

type PingRequest struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Outbound payloads.

type RoomJoinedEvent struct {
	RoomID       domain.RoomID `json:"roomId"`
	RoomName     string        `json:"roomName,omitempty"`
	Participants []Participant `json:"participants"`
}

type RoomLeftEvent struct {
	RoomID domain.RoomID `json:"roomId"`
}

type UserJoinedEvent struct {
	UserID       domain.UserID `json:"userId"`
	Username     string        `json:"username"`
	DisplayName  string        `json:"displayName"`
	Participants []Participant `json:"participants"`
}

type UserLeftEvent struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

type ChatMessageEvent struct {
	ID        string             `json:"id"`
	Content   string             `json:"content"`
	Author    Participant        `json:"author"`
	Kind      domain.MessageKind `json:"messageType"`
	TimeAgo   string             `json:"timeAgo"`
	CreatedAt int64              `json:"createdAt"`
}

type SignalEvent struct {
	SenderUserID   domain.UserID   `json:"senderUserId"`
	SenderUsername string          `json:"senderUsername"`
	Signal         json.RawMessage `json:"signal"`
}

type PeerMediaStateEvent struct {
	UserID    domain.UserID `json:"userId"`
	Username  string        `json:"username"`
	MediaType string        `json:"mediaType"`
	IsEnabled bool          `json:"isEnabled"`
}

type PeerScreenShareEvent struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

type UserTypingEvent struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	IsTyping bool          `json:"isTyping"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongEvent struct {
	Timestamp int64 `json:"timestamp"`
}

type HeartbeatEvent struct {
	Timestamp int64 `json:"timestamp"`
}
