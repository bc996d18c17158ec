package client

import (
	"encoding/json"
	"time"

	"github.com/parleyhq/parley/internal/protocol"
)

// Typed send helpers, one per inbound wire kind.

// JoinRoom requests a room join and remembers the room so a reconnect can
// replay it.
func (c *Client) JoinRoom(roomID string) error {
	c.mu.Lock()
	c.lastRoom = roomID
	c.mu.Unlock()
	return c.Send(protocol.KindJoinRoom, protocol.JoinRoomRequest{RoomID: roomID})
}

// LeaveRoom leaves the current room and forgets it for reconnect purposes.
func (c *Client) LeaveRoom(roomID string) error {
	c.mu.Lock()
	c.lastRoom = ""
	c.mu.Unlock()
	return c.Send(protocol.KindLeaveRoom, protocol.LeaveRoomRequest{RoomID: roomID})
}

func (c *Client) SendChat(roomID, message string) error {
	return c.Send(protocol.KindChatMessage, protocol.ChatMessageRequest{RoomID: roomID, Message: message})
}

// SendSignal relays an opaque negotiation payload to every live connection
// of the target user.
func (c *Client) SendSignal(targetUserID string, signal json.RawMessage) error {
	return c.Send(protocol.KindWebRTCSignal, protocol.SignalRequest{TargetUserID: targetUserID, Signal: signal})
}

// SendSignalToRoom relays an opaque negotiation payload to the rest of the
// current room.
func (c *Client) SendSignalToRoom(roomID string, signal json.RawMessage) error {
	return c.Send(protocol.KindWebRTCSignalRoom, protocol.SignalRequest{RoomID: roomID, Signal: signal})
}

func (c *Client) SendMediaState(roomID, mediaType string, enabled bool) error {
	return c.Send(protocol.KindMediaStateChange, protocol.MediaStateRequest{RoomID: roomID, MediaType: mediaType, IsEnabled: enabled})
}

func (c *Client) StartScreenShare(roomID string) error {
	return c.Send(protocol.KindScreenShareStart, protocol.ScreenShareRequest{RoomID: roomID})
}

func (c *Client) StopScreenShare(roomID string) error {
	return c.Send(protocol.KindScreenShareStop, protocol.ScreenShareRequest{RoomID: roomID})
}

func (c *Client) StartTyping(roomID string) error {
	return c.Send(protocol.KindTypingStart, protocol.TypingRequest{RoomID: roomID})
}

func (c *Client) StopTyping(roomID string) error {
	return c.Send(protocol.KindTypingStop, protocol.TypingRequest{RoomID: roomID})
}

// Ping asks the server for a pong, keeping the connection warm.
func (c *Client) Ping() error {
	return c.Send(protocol.KindPing, protocol.PingRequest{Timestamp: time.Now().UnixMilli()})
}
