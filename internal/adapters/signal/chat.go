package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/protocol"
)

func (ctl *Controller) handleChatMessage(ctx context.Context, cid core.ConnID, c *wsConn, data []byte) {
	var p protocol.ChatMessageRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad chat payload")
		ctl.sendError(c, protocol.CodeProtocolError, "invalid chat payload")
		return
	}

	if ctl.ChatLimiter != nil {
		if identity, ok := ctl.Orch.Registry.Identity(cid); ok && !ctl.ChatLimiter.Allow(identity.UserID) {
			log.Warn().Str("module", "signal").Str("user", string(identity.UserID)).Msg("chat rate limited")
			ctl.sendError(c, "rate-limited", "too many messages, slow down")
			return
		}
	}

	if err := ctl.Orch.Chat(ctx, cid, p.RoomID, p.Message); err != nil {
		ctl.reportErr(c, err)
	}
}
