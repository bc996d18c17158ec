package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
)

// regEntry is everything the registry knows about one live connection.
type regEntry struct {
	conn     core.SignalConnection
	identity domain.Identity
	room     domain.RoomID // "" while unbound
	joinedAt time.Time

	// transition serializes join/leave/disconnect for this connection so a
	// second room transition cannot start while one is still in flight.
	transition sync.Mutex
}

// MemberSnapshot is a read-only view of one registered connection.
type MemberSnapshot struct {
	ConnID   core.ConnID
	Identity domain.Identity
	Conn     core.SignalConnection
}

// Registry is the single source of truth mapping connection, identity and
// room. It owns three indices that are only ever mutated together under one
// lock, so they cannot drift: conns (connection -> entry), byRoom (room ->
// connections in join order) and byUser (user -> connections).
type Registry struct {
	mu     sync.RWMutex
	conns  map[core.ConnID]*regEntry
	byRoom map[domain.RoomID][]core.ConnID
	byUser map[domain.UserID]map[core.ConnID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[core.ConnID]*regEntry),
		byRoom: make(map[domain.RoomID][]core.ConnID),
		byUser: make(map[domain.UserID]map[core.ConnID]struct{}),
	}
}

func (r *Registry) Register(cid core.ConnID, conn core.SignalConnection, identity domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[cid] = &regEntry{
		conn:     conn,
		identity: identity,
		joinedAt: time.Now(),
	}
	set, ok := r.byUser[identity.UserID]
	if !ok {
		set = make(map[core.ConnID]struct{})
		r.byUser[identity.UserID] = set
	}
	set[cid] = struct{}{}
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Str("user", string(identity.UserID)).Msg("registered connection")
}

// Deregister removes the connection from every index. Idempotent: repeated
// calls for the same connection are no-ops.
func (r *Registry) Deregister(cid core.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return false
	}
	if e.room != "" {
		r.dropFromRoom(e.room, cid)
	}
	if set, ok := r.byUser[e.identity.UserID]; ok {
		delete(set, cid)
		if len(set) == 0 {
			delete(r.byUser, e.identity.UserID)
		}
	}
	delete(r.conns, cid)
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("deregistered connection")
	return true
}

func (r *Registry) Identity(cid core.ConnID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok {
		return domain.Identity{}, false
	}
	return e.identity, true
}

func (r *Registry) Conn(cid core.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// ConnectionsOf returns every live connection of a user, supporting
// multi-tab and multi-device fan-out.
func (r *Registry) ConnectionsOf(user domain.UserID) []MemberSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[user]
	out := make([]MemberSnapshot, 0, len(set))
	for cid := range set {
		if e, ok := r.conns[cid]; ok {
			out = append(out, MemberSnapshot{ConnID: cid, Identity: e.identity, Conn: e.conn})
		}
	}
	return out
}

// ConnectionsIn returns the room's connections in registry insertion order.
func (r *Registry) ConnectionsIn(room domain.RoomID) []MemberSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byRoom[room]
	out := make([]MemberSnapshot, 0, len(ids))
	for _, cid := range ids {
		if e, ok := r.conns[cid]; ok {
			out = append(out, MemberSnapshot{ConnID: cid, Identity: e.identity, Conn: e.conn})
		}
	}
	return out
}

func (r *Registry) CurrentRoomOf(cid core.ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok || e.room == "" {
		return "", false
	}
	return e.room, true
}

// SetRoom binds an unbound connection to a room. The caller must have cleared
// any previous binding first; binding twice is refused so a connection can
// never appear under two rooms.
func (r *Registry) SetRoom(cid core.ConnID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok || e.room != "" {
		return false
	}
	e.room = room
	r.byRoom[room] = append(r.byRoom[room], cid)
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Str("room", string(room)).Msg("bound to room")
	return true
}

// ClearRoom unbinds the connection from its current room and reports which
// room that was. Returns ok=false when the connection was not in a room,
// which makes leave cleanup naturally run at most once.
func (r *Registry) ClearRoom(cid core.ConnID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok || e.room == "" {
		return "", false
	}
	room := e.room
	e.room = ""
	r.dropFromRoom(room, cid)
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Str("room", string(room)).Msg("unbound from room")
	return room, true
}

// UserConnsInRoom counts the user's live connections currently bound to the
// room. Zero means the persisted membership can be demoted.
func (r *Registry) UserConnsInRoom(user domain.UserID, room domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for cid := range r.byUser[user] {
		if e, ok := r.conns[cid]; ok && e.room == room {
			n++
		}
	}
	return n
}

// All returns a snapshot of every registered connection, used by the
// heartbeat which pings regardless of room membership.
func (r *Registry) All() []MemberSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberSnapshot, 0, len(r.conns))
	for cid, e := range r.conns {
		out = append(out, MemberSnapshot{ConnID: cid, Identity: e.identity, Conn: e.conn})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// LockTransition acquires the per-connection transition guard. The returned
// unlock must be called once the join/leave/disconnect settles. ok=false
// means the connection is already gone.
func (r *Registry) LockTransition(cid core.ConnID) (unlock func(), ok bool) {
	r.mu.RLock()
	e, ok := r.conns[cid]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.transition.Lock()
	return e.transition.Unlock, true
}

// dropFromRoom removes cid from the room's ordered slice. Caller holds r.mu.
func (r *Registry) dropFromRoom(room domain.RoomID, cid core.ConnID) {
	ids := r.byRoom[room]
	for i, id := range ids {
		if id == cid {
			r.byRoom[room] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.byRoom[room]) == 0 {
		delete(r.byRoom, room)
	}
}
