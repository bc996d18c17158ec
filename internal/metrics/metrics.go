package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_connections_open",
			Help: "Currently open signaling connections",
		},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_auth_failures_total",
			Help: "Connections rejected at the authentication gate",
		},
	)

	RoomJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_room_joins_total",
			Help: "Completed room joins",
		},
	)

	ChatMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_chat_messages_total",
			Help: "Chat messages persisted and broadcast",
		},
	)

	SignalsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_signals_relayed_total",
			Help: "Peer negotiation payloads relayed",
		},
		[]string{"mode"}, // "targeted" or "room"
	)

	PresenceEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_presence_events_total",
			Help: "Presence broadcasts by kind",
		},
		[]string{"kind"},
	)

	ProtocolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_protocol_errors_total",
			Help: "Malformed or unknown inbound frames",
		},
	)

	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_frames_dropped_total",
			Help: "Outbound frames dropped on backpressure",
		},
	)
)
