package signal

import (
	"time"

	"github.com/parleyhq/parley/internal/protocol"
)

func (ctl *Controller) handlePing(c *wsConn) {
	ctl.sendJSON(c, protocol.KindPong, protocol.PongEvent{
		Timestamp: time.Now().UnixMilli(),
	})
}
