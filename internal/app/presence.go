package app

import (
	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/protocol"
)

// Presence events are fire-and-forget: broadcast verbatim to the rest of the
// sender's room, nothing retained server-side. Unbound senders are dropped
// silently.

func (o *Orchestrator) MediaState(cid core.ConnID, mediaType string, enabled bool) {
	identity, roomID, ok := o.presenceContext(cid)
	if !ok {
		return
	}
	o.broadcastRoom(roomID, protocol.KindPeerMediaStateChange, protocol.PeerMediaStateEvent{
		UserID:    identity.UserID,
		Username:  identity.Username,
		MediaType: mediaType,
		IsEnabled: enabled,
	}, cid)
	metrics.PresenceEvents.WithLabelValues("media").Inc()
}

func (o *Orchestrator) ScreenShare(cid core.ConnID, start bool) {
	identity, roomID, ok := o.presenceContext(cid)
	if !ok {
		return
	}
	kind := protocol.KindPeerScreenShareStop
	if start {
		kind = protocol.KindPeerScreenShareStart
	}
	o.broadcastRoom(roomID, kind, protocol.PeerScreenShareEvent{
		UserID:   identity.UserID,
		Username: identity.Username,
	}, cid)
	metrics.PresenceEvents.WithLabelValues("screen").Inc()
}

func (o *Orchestrator) Typing(cid core.ConnID, started bool) {
	identity, roomID, ok := o.presenceContext(cid)
	if !ok {
		return
	}
	o.broadcastRoom(roomID, protocol.KindUserTyping, protocol.UserTypingEvent{
		UserID:   identity.UserID,
		Username: identity.Username,
		IsTyping: started,
	}, cid)
	metrics.PresenceEvents.WithLabelValues("typing").Inc()
}

func (o *Orchestrator) presenceContext(cid core.ConnID) (domain.Identity, domain.RoomID, bool) {
	identity, ok := o.Registry.Identity(cid)
	if !ok {
		return domain.Identity{}, "", false
	}
	roomID, ok := o.Registry.CurrentRoomOf(cid)
	if !ok {
		log.Debug().Str("module", "app").Str("conn", string(cid)).Msg("presence event from unbound connection")
		return domain.Identity{}, "", false
	}
	return identity, roomID, true
}
