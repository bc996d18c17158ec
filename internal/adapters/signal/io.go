package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/protocol"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.writeTimeout())); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, cid core.ConnID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("readPump closing")
		// Cleanup runs on a fresh context: the connection context is gone
		// but the leave reconciliation must still reach the stores.
		cleanupCtx, cancelCleanup := context.WithTimeout(context.Background(), 10*time.Second)
		ctl.Orch.Disconnect(cleanupCtx, cid)
		cancelCleanup()
		c.Close()
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("readPump read error")
				return
			}
			ctl.handleFrame(ctx, cid, c, data)
		}
	}
}

// handleFrame parses one inbound envelope and dispatches on its kind.
// Malformed frames and unknown kinds are protocol errors: reported to the
// sender, never terminal.
func (ctl *Controller) handleFrame(ctx context.Context, cid core.ConnID, c *wsConn, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		metrics.ProtocolErrors.Inc()
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("bad frame")
		ctl.sendError(c, protocol.CodeProtocolError, "invalid message format")
		return
	}

	switch env.Kind {
	case protocol.KindJoinRoom:
		ctl.handleJoinRoom(ctx, cid, c, env.Data)
	case protocol.KindLeaveRoom:
		ctl.handleLeaveRoom(ctx, cid, c, env.Data)
	case protocol.KindChatMessage:
		ctl.handleChatMessage(ctx, cid, c, env.Data)
	case protocol.KindWebRTCSignal:
		ctl.handleSignalTargeted(cid, c, env.Data)
	case protocol.KindWebRTCSignalRoom:
		ctl.handleSignalRoom(cid, c, env.Data)
	case protocol.KindMediaStateChange:
		ctl.handleMediaState(cid, c, env.Data)
	case protocol.KindScreenShareStart:
		ctl.handleScreenShare(cid, true)
	case protocol.KindScreenShareStop:
		ctl.handleScreenShare(cid, false)
	case protocol.KindTypingStart:
		ctl.handleTyping(cid, true)
	case protocol.KindTypingStop:
		ctl.handleTyping(cid, false)
	case protocol.KindPing:
		ctl.handlePing(c)
	default:
		metrics.ProtocolErrors.Inc()
		log.Warn().Str("module", "signal").Str("kind", env.Kind).Msg("unknown message kind")
		ctl.sendError(c, protocol.CodeProtocolError, "unknown message kind")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, kind string, v any) {
	frame, err := protocol.Encode(kind, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("kind", kind).Msg("encode frame")
		return
	}
	_ = c.TrySend(frame)
}

func (ctl *Controller) sendError(c *wsConn, code, message string) {
	ctl.sendJSON(c, protocol.KindError, protocol.ErrorEvent{Code: code, Message: message})
}

// reportErr maps a session-layer failure to its wire error. Nothing mapped
// here terminates the connection.
func (ctl *Controller) reportErr(c *wsConn, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		ctl.sendError(c, protocol.CodeNotFound, "room not found")
	case errors.Is(err, domain.ErrAccessDenied):
		ctl.sendError(c, protocol.CodeAuthorizationDenied, "access denied")
	case errors.Is(err, domain.ErrPersistence):
		ctl.sendError(c, protocol.CodePersistenceFailed, "operation failed")
	case errors.Is(err, domain.ErrInvalidPayload):
		metrics.ProtocolErrors.Inc()
		ctl.sendError(c, protocol.CodeProtocolError, err.Error())
	default:
		log.Error().Err(err).Str("module", "signal").Msg("handler error")
		ctl.sendError(c, protocol.CodeProtocolError, "request failed")
	}
}
