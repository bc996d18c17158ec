package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/protocol"
)

func (ctl *Controller) handleJoinRoom(ctx context.Context, cid core.ConnID, c *wsConn, data []byte) {
	var p protocol.JoinRoomRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, protocol.CodeProtocolError, "invalid join payload")
		return
	}
	if err := ctl.Orch.JoinRoom(ctx, cid, p.RoomID); err != nil {
		ctl.reportErr(c, err)
	}
}

// handleLeaveRoom leaves the current room; the connection stays open.
func (ctl *Controller) handleLeaveRoom(ctx context.Context, cid core.ConnID, c *wsConn, data []byte) {
	var p protocol.LeaveRoomRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			log.Warn().Err(err).Str("module", "signal").Msg("bad leave payload")
			ctl.sendError(c, protocol.CodeProtocolError, "invalid leave payload")
			return
		}
	}
	if err := ctl.Orch.LeaveRoom(ctx, cid); err != nil {
		ctl.reportErr(c, err)
	}
}
