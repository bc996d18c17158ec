package app

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/protocol"
)

// RelayToUser delivers an opaque negotiation payload to every live connection
// of the target user, supporting simultaneous devices. The sender never
// receives its own signal, even when targeting itself.
func (o *Orchestrator) RelayToUser(cid core.ConnID, targetUser string, signal json.RawMessage) error {
	identity, ok := o.Registry.Identity(cid)
	if !ok {
		return nil
	}
	if targetUser == "" || len(signal) == 0 {
		return fmt.Errorf("%w: target user and signal are required", domain.ErrInvalidPayload)
	}

	frame, err := protocol.Encode(protocol.KindWebRTCSignal, protocol.SignalEvent{
		SenderUserID:   identity.UserID,
		SenderUsername: identity.Username,
		Signal:         signal,
	})
	if err != nil {
		return err
	}

	for _, snap := range o.Registry.ConnectionsOf(domain.UserID(targetUser)) {
		if snap.ConnID == cid {
			continue
		}
		if err := snap.Conn.TrySend(frame); err != nil {
			metrics.FramesDropped.Inc()
			log.Warn().Err(err).Str("module", "app").Str("conn", string(snap.ConnID)).Msg("signal frame dropped")
		}
	}

	metrics.SignalsRelayed.WithLabelValues("targeted").Inc()
	return nil
}

// RelayToRoom delivers an opaque negotiation payload to every other
// connection in the sender's current room. Unbound senders are a no-op.
func (o *Orchestrator) RelayToRoom(cid core.ConnID, signal json.RawMessage) error {
	identity, ok := o.Registry.Identity(cid)
	if !ok {
		return nil
	}
	if len(signal) == 0 {
		return fmt.Errorf("%w: signal is required", domain.ErrInvalidPayload)
	}

	roomID, ok := o.Registry.CurrentRoomOf(cid)
	if !ok {
		log.Debug().Str("module", "app").Str("conn", string(cid)).Msg("room signal from unbound connection")
		return nil
	}

	o.broadcastRoom(roomID, protocol.KindWebRTCSignal, protocol.SignalEvent{
		SenderUserID:   identity.UserID,
		SenderUsername: identity.Username,
		Signal:         signal,
	}, cid)

	metrics.SignalsRelayed.WithLabelValues("room").Inc()
	return nil
}
