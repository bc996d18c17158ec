package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/protocol"
)

// JoinRoom runs the full join protocol for a connection: room lookup,
// permission check, persisted-membership promotion, implicit leave of any
// current room, registry transition, activity touch and the two broadcasts.
// Joining while already in a room is an atomic leave-then-join; there is no
// window where the connection belongs to two rooms.
func (o *Orchestrator) JoinRoom(ctx context.Context, cid core.ConnID, rawRoom string) error {
	roomID := domain.NormalizeRoomID(rawRoom)
	if roomID == "" {
		return fmt.Errorf("%w: room id is required", domain.ErrInvalidPayload)
	}

	unlock, ok := o.Registry.LockTransition(cid)
	if !ok {
		return nil
	}
	defer unlock()

	identity, ok := o.Registry.Identity(cid)
	if !ok {
		return nil
	}

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	room, err := o.Rooms.Find(sctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return err
		}
		return fmt.Errorf("%w: find room: %v", domain.ErrPersistence, err)
	}

	member := room.HasMember(identity.UserID)
	if !member && !room.AllowGuests {
		return fmt.Errorf("%w: not a member of this room", domain.ErrAccessDenied)
	}
	if room.MaxParticipants > 0 && len(o.Registry.ConnectionsIn(roomID)) >= room.MaxParticipants {
		return fmt.Errorf("%w: room is full", domain.ErrAccessDenied)
	}

	if !member {
		if err := o.Rooms.AddMember(sctx, roomID, identity.UserID); err != nil {
			return fmt.Errorf("%w: add member: %v", domain.ErrPersistence, err)
		}
	}

	// Implicit leave of the previous room, with its broadcasts and
	// membership demotion, before the new binding appears anywhere.
	// A rejoin of the same room keeps its binding: leaving first would
	// demote the persisted membership out from under a live connection.
	current, bound := o.Registry.CurrentRoomOf(cid)
	if bound && current != roomID {
		o.leaveCurrentRoom(ctx, cid)
		bound = false
	}
	if !bound && !o.Registry.SetRoom(cid, roomID) {
		// Connection disappeared mid-transition; nothing left to do.
		return nil
	}

	if err := o.Rooms.TouchActivity(sctx, roomID); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("room", string(roomID)).Msg("touch activity failed")
	}

	participants := o.participants(roomID)

	o.broadcastRoom(roomID, protocol.KindUserJoined, protocol.UserJoinedEvent{
		UserID:       identity.UserID,
		Username:     identity.Username,
		DisplayName:  identity.DisplayName,
		Participants: participants,
	}, cid)

	o.reply(cid, protocol.KindRoomJoined, protocol.RoomJoinedEvent{
		RoomID:       roomID,
		RoomName:     room.Name,
		Participants: participants,
	})

	metrics.RoomJoins.Inc()
	log.Info().Str("module", "app").Str("conn", string(cid)).Str("user", string(identity.UserID)).Str("room", string(roomID)).Msg("joined room")
	return nil
}

// LeaveRoom handles an explicit leave request. The connection stays open.
func (o *Orchestrator) LeaveRoom(ctx context.Context, cid core.ConnID) error {
	unlock, ok := o.Registry.LockTransition(cid)
	if !ok {
		return nil
	}
	defer unlock()

	room, left := o.leaveCurrentRoom(ctx, cid)
	if left {
		o.reply(cid, protocol.KindRoomLeft, protocol.RoomLeftEvent{RoomID: room})
	}
	return nil
}

// leaveCurrentRoom is the single leave sequence shared by explicit leave,
// implicit leave-before-join and disconnect cleanup. ClearRoom succeeds at
// most once per binding, so the sequence cannot run twice for the same stay.
// Store failures here are cleanup failures: logged, never surfaced.
func (o *Orchestrator) leaveCurrentRoom(ctx context.Context, cid core.ConnID) (domain.RoomID, bool) {
	roomID, ok := o.Registry.ClearRoom(cid)
	if !ok {
		return "", false
	}
	identity, ok := o.Registry.Identity(cid)
	if !ok {
		return roomID, true
	}

	o.broadcastRoom(roomID, protocol.KindUserLeft, protocol.UserLeftEvent{
		UserID:   identity.UserID,
		Username: identity.Username,
	}, cid)

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	if o.Registry.UserConnsInRoom(identity.UserID, roomID) == 0 {
		if err := o.Rooms.RemoveMember(sctx, roomID, identity.UserID); err != nil {
			log.Error().Err(err).Str("module", "app").Str("user", string(identity.UserID)).Str("room", string(roomID)).Msg("membership demotion failed")
		}
	}
	if err := o.Rooms.TouchActivity(sctx, roomID); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("room", string(roomID)).Msg("touch activity failed")
	}

	log.Info().Str("module", "app").Str("conn", string(cid)).Str("user", string(identity.UserID)).Str("room", string(roomID)).Msg("left room")
	return roomID, true
}
