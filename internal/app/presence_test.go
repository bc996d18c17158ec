package app

import (
	"testing"

	"github.com/parleyhq/parley/internal/protocol"
)

func TestPresenceBroadcastsToRestOfRoom(t *testing.T) {
	o, rooms, _ := newTestOrchestrator()
	rooms.put(openRoom("AAAAA", ""))

	sender := connect(o, "c1", "alice")
	mustJoin(t, o, "c1", "AAAAA")
	peer := connect(o, "c2", "bob")
	mustJoin(t, o, "c2", "AAAAA")

	tests := []struct {
		name string
		send func()
		kind string
	}{
		{"media state", func() { o.MediaState("c1", "video", false) }, protocol.KindPeerMediaStateChange},
		{"screen share start", func() { o.ScreenShare("c1", true) }, protocol.KindPeerScreenShareStart},
		{"screen share stop", func() { o.ScreenShare("c1", false) }, protocol.KindPeerScreenShareStop},
		{"typing start", func() { o.Typing("c1", true) }, protocol.KindUserTyping},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := peer.countKind(t, tt.kind)
			tt.send()
			if got := peer.countKind(t, tt.kind); got != before+1 {
				t.Errorf("peer frames of %s = %d, want %d", tt.kind, got, before+1)
			}
			if n := sender.countKind(t, tt.kind); n != 0 {
				t.Errorf("sender received its own %s", tt.kind)
			}
		})
	}
}

func TestPresencePayloads(t *testing.T) {
	o, rooms, _ := newTestOrchestrator()
	rooms.put(openRoom("AAAAA", ""))
	connect(o, "c1", "alice")
	mustJoin(t, o, "c1", "AAAAA")
	peer := connect(o, "c2", "bob")
	mustJoin(t, o, "c2", "AAAAA")

	o.MediaState("c1", "audio", true)
	var media protocol.PeerMediaStateEvent
	peer.lastEvent(t, protocol.KindPeerMediaStateChange, &media)
	if media.Username != "alice" || media.MediaType != "audio" || !media.IsEnabled {
		t.Errorf("media event = %+v", media)
	}

	o.Typing("c1", true)
	o.Typing("c1", false)
	var typing protocol.UserTypingEvent
	peer.lastEvent(t, protocol.KindUserTyping, &typing)
	if typing.Username != "alice" || typing.IsTyping {
		t.Errorf("typing event = %+v, want alice not typing", typing)
	}
}

func TestPresenceFromUnboundConnectionIsDropped(t *testing.T) {
	o, rooms, _ := newTestOrchestrator()
	rooms.put(openRoom("AAAAA", ""))
	peer := connect(o, "c2", "bob")
	mustJoin(t, o, "c2", "AAAAA")

	connect(o, "c1", "alice") // never joins
	o.MediaState("c1", "video", true)
	o.ScreenShare("c1", true)
	o.Typing("c1", true)

	for _, kind := range []string{
		protocol.KindPeerMediaStateChange,
		protocol.KindPeerScreenShareStart,
		protocol.KindUserTyping,
	} {
		if n := peer.countKind(t, kind); n != 0 {
			t.Errorf("unbound sender leaked %d %s frames", n, kind)
		}
	}
}
