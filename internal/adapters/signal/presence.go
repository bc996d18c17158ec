package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/protocol"
)

func (ctl *Controller) handleMediaState(cid core.ConnID, c *wsConn, data []byte) {
	var p protocol.MediaStateRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad media state payload")
		ctl.sendError(c, protocol.CodeProtocolError, "invalid media state payload")
		return
	}
	ctl.Orch.MediaState(cid, p.MediaType, p.IsEnabled)
}

func (ctl *Controller) handleScreenShare(cid core.ConnID, start bool) {
	ctl.Orch.ScreenShare(cid, start)
}

func (ctl *Controller) handleTyping(cid core.ConnID, started bool) {
	ctl.Orch.Typing(cid, started)
}
