package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/protocol"
)

// Heartbeat sends a periodic liveness frame to every open connection,
// independent of room membership. It does not prune unresponsive peers.
type Heartbeat struct {
	Registry *Registry
	Interval time.Duration
}

func (h *Heartbeat) Run(ctx context.Context) {
	interval := h.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.heartbeat").Msg("heartbeat stopped")
			return
		case now := <-ticker.C:
			h.Tick(now)
		}
	}
}

// Tick sends one heartbeat frame to every registered connection.
func (h *Heartbeat) Tick(now time.Time) {
	frame, err := protocol.Encode(protocol.KindHeartbeat, protocol.HeartbeatEvent{Timestamp: now.UnixMilli()})
	if err != nil {
		log.Error().Err(err).Str("module", "app.heartbeat").Msg("encode heartbeat")
		return
	}
	for _, snap := range h.Registry.All() {
		_ = snap.Conn.TrySend(frame)
	}
}
