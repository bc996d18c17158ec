package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/protocol"
)

// The relay handlers never look inside Signal: offer/answer/candidate
// payloads pass through opaque.

func (ctl *Controller) handleSignalTargeted(cid core.ConnID, c *wsConn, data []byte) {
	var p protocol.SignalRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad signal payload")
		ctl.sendError(c, protocol.CodeProtocolError, "invalid signal payload")
		return
	}
	if err := ctl.Orch.RelayToUser(cid, p.TargetUserID, p.Signal); err != nil {
		ctl.reportErr(c, err)
	}
}

func (ctl *Controller) handleSignalRoom(cid core.ConnID, c *wsConn, data []byte) {
	var p protocol.SignalRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad room signal payload")
		ctl.sendError(c, protocol.CodeProtocolError, "invalid signal payload")
		return
	}
	if err := ctl.Orch.RelayToRoom(cid, p.Signal); err != nil {
		ctl.reportErr(c, err)
	}
}
