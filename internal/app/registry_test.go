package app

import (
	"testing"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
)

func TestRegistryDeregisterRemovesEveryIndex(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}
	r.Register("c1", c, ident("alice"))
	if !r.SetRoom("c1", "AAAAA") {
		t.Fatal("SetRoom refused a fresh binding")
	}

	if !r.Deregister("c1") {
		t.Fatal("Deregister reported nothing removed")
	}
	if _, ok := r.Identity("c1"); ok {
		t.Error("identity survived deregistration")
	}
	if got := r.ConnectionsIn("AAAAA"); len(got) != 0 {
		t.Errorf("room index still lists %d connections", len(got))
	}
	if got := r.ConnectionsOf("alice"); len(got) != 0 {
		t.Errorf("user index still lists %d connections", len(got))
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistryDeregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", &fakeConn{}, ident("alice"))
	if !r.Deregister("c1") {
		t.Fatal("first Deregister reported nothing removed")
	}
	if r.Deregister("c1") {
		t.Error("second Deregister removed something")
	}
}

func TestRegistrySetRoomRefusesSecondBinding(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", &fakeConn{}, ident("alice"))
	if !r.SetRoom("c1", "AAAAA") {
		t.Fatal("first SetRoom refused")
	}
	if r.SetRoom("c1", "BBBBB") {
		t.Fatal("SetRoom bound an already-bound connection")
	}
	if room, _ := r.CurrentRoomOf("c1"); room != "AAAAA" {
		t.Errorf("CurrentRoomOf = %s, want AAAAA", room)
	}
	if got := r.ConnectionsIn("BBBBB"); len(got) != 0 {
		t.Errorf("refused binding still landed in room index: %d entries", len(got))
	}
}

func TestRegistryClearRoomRunsOnce(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", &fakeConn{}, ident("alice"))
	r.SetRoom("c1", "AAAAA")

	room, ok := r.ClearRoom("c1")
	if !ok || room != "AAAAA" {
		t.Fatalf("ClearRoom = (%s, %v), want (AAAAA, true)", room, ok)
	}
	if _, ok := r.ClearRoom("c1"); ok {
		t.Error("second ClearRoom succeeded")
	}
	if _, ok := r.CurrentRoomOf("c1"); ok {
		t.Error("connection still reports a room after ClearRoom")
	}
}

func TestRegistryRoomKeepsInsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, cid := range []core.ConnID{"c1", "c2", "c3"} {
		r.Register(cid, &fakeConn{}, ident("u-"+string(cid)))
		r.SetRoom(cid, "AAAAA")
	}
	r.ClearRoom("c2")

	snaps := r.ConnectionsIn("AAAAA")
	if len(snaps) != 2 || snaps[0].ConnID != "c1" || snaps[1].ConnID != "c3" {
		t.Fatalf("room order = %v, want [c1 c3]", snaps)
	}
}

func TestRegistryUserConnsInRoom(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", &fakeConn{}, ident("alice"))
	r.Register("c2", &fakeConn{}, ident("alice"))
	r.Register("c3", &fakeConn{}, ident("bob"))
	r.SetRoom("c1", "AAAAA")
	r.SetRoom("c2", "AAAAA")
	r.SetRoom("c3", "AAAAA")

	if n := r.UserConnsInRoom("alice", "AAAAA"); n != 2 {
		t.Errorf("alice in AAAAA = %d, want 2", n)
	}
	r.ClearRoom("c1")
	if n := r.UserConnsInRoom("alice", "AAAAA"); n != 1 {
		t.Errorf("alice in AAAAA after one leave = %d, want 1", n)
	}
	if n := r.UserConnsInRoom("alice", domain.RoomID("BBBBB")); n != 0 {
		t.Errorf("alice in BBBBB = %d, want 0", n)
	}
}

func TestRegistryLockTransitionGoneConnection(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.LockTransition("missing"); ok {
		t.Error("LockTransition succeeded for an unknown connection")
	}
	r.Register("c1", &fakeConn{}, ident("alice"))
	unlock, ok := r.LockTransition("c1")
	if !ok {
		t.Fatal("LockTransition failed for a live connection")
	}
	unlock()
}
