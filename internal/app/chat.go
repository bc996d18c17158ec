package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/protocol"
)

// Chat persists a message and then broadcasts the stored record to the whole
// room, sender included. The claimed room must match the connection's live
// binding; a persistence failure suppresses the broadcast entirely.
func (o *Orchestrator) Chat(ctx context.Context, cid core.ConnID, rawRoom, content string) error {
	identity, ok := o.Registry.Identity(cid)
	if !ok {
		return nil
	}

	roomID := domain.NormalizeRoomID(rawRoom)
	if roomID == "" {
		return fmt.Errorf("%w: message and room id are required", domain.ErrInvalidPayload)
	}
	msg, err := domain.NewChatMessage(identity, roomID, content)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	// Defense against a spoofed room id: the live binding is authoritative.
	current, ok := o.Registry.CurrentRoomOf(cid)
	if !ok || current != roomID {
		return fmt.Errorf("%w: not in this room", domain.ErrAccessDenied)
	}

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	stored, err := o.Messages.Append(sctx, msg)
	if err != nil {
		return fmt.Errorf("%w: append message: %v", domain.ErrPersistence, err)
	}

	o.broadcastRoom(roomID, protocol.KindChatMessage, protocol.ChatMessageEvent{
		ID:        stored.ID,
		Content:   stored.Content,
		Author:    participantOf(identity),
		Kind:      stored.Kind,
		TimeAgo:   stored.TimeAgo(time.Now()),
		CreatedAt: stored.CreatedAt.UnixMilli(),
	}, "")

	// Best-effort stats; the message is already durable and visible.
	if err := o.Rooms.IncrementMessageCount(sctx, roomID); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("room", string(roomID)).Msg("message count update failed")
	}
	if err := o.Rooms.TouchActivity(sctx, roomID); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("room", string(roomID)).Msg("touch activity failed")
	}

	metrics.ChatMessages.Inc()
	return nil
}
