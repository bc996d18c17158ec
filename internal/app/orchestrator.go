// Package app owns the session and room state of the process: the connection
// registry and the orchestrator that runs the join/leave protocol, the chat
// relay, the peer-signal relay and the presence relay on top of it.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/protocol"
)

// Orchestrator coordinates the registry with the external collaborators.
// All state transitions for one connection run under its transition guard,
// so interleaved handlers for the same connection cannot race the indices.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomStore
	Messages core.MessageStore

	// StoreTimeout bounds every external-store call so a stalled store
	// cannot block a connection's handler forever. Zero disables the bound.
	StoreTimeout time.Duration
}

// Connect enters an authenticated connection into the registry.
func (o *Orchestrator) Connect(cid core.ConnID, conn core.SignalConnection, identity domain.Identity) {
	o.Registry.Register(cid, conn, identity)
	metrics.ConnectionsOpen.Inc()
}

// Disconnect reconciles an abrupt or orderly transport close: the connection
// leaves its room (with the usual broadcasts and membership demotion) and is
// removed from every index. Safe to call more than once; cleanup runs exactly
// once. Errors never escape this boundary.
func (o *Orchestrator) Disconnect(ctx context.Context, cid core.ConnID) {
	unlock, ok := o.Registry.LockTransition(cid)
	if !ok {
		return
	}
	defer unlock()

	o.leaveCurrentRoom(ctx, cid)
	if o.Registry.Deregister(cid) {
		metrics.ConnectionsOpen.Dec()
	}
}

func (o *Orchestrator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.StoreTimeout)
}

// reply sends a frame to one connection, dropping it on backpressure.
func (o *Orchestrator) reply(cid core.ConnID, kind string, data any) {
	conn, ok := o.Registry.Conn(cid)
	if !ok {
		return
	}
	frame, err := protocol.Encode(kind, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Str("kind", kind).Msg("encode reply")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		metrics.FramesDropped.Inc()
		log.Warn().Err(err).Str("module", "app").Str("conn", string(cid)).Str("kind", kind).Msg("reply dropped")
	}
}

// broadcastRoom fans a frame out to every connection in the room, in registry
// insertion order, optionally excluding one connection.
func (o *Orchestrator) broadcastRoom(room domain.RoomID, kind string, data any, exclude core.ConnID) {
	frame, err := protocol.Encode(kind, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Str("kind", kind).Msg("encode broadcast")
		return
	}
	for _, snap := range o.Registry.ConnectionsIn(room) {
		if snap.ConnID == exclude {
			continue
		}
		if err := snap.Conn.TrySend(frame); err != nil {
			metrics.FramesDropped.Inc()
			log.Warn().Err(err).Str("module", "app").Str("conn", string(snap.ConnID)).Str("kind", kind).Msg("broadcast frame dropped")
		}
	}
}

// participants resolves the room's live connections to identities,
// one entry per connection, in registry insertion order.
func (o *Orchestrator) participants(room domain.RoomID) []protocol.Participant {
	snaps := o.Registry.ConnectionsIn(room)
	out := make([]protocol.Participant, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, participantOf(s.Identity))
	}
	return out
}

func participantOf(id domain.Identity) protocol.Participant {
	return protocol.Participant{
		UserID:      id.UserID,
		Username:    id.Username,
		DisplayName: id.DisplayName,
	}
}
