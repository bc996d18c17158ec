package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/protocol"
)

// fakeConn records every frame handed to it.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
	closed bool
}

func (f *fakeConn) TrySend(frame core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send buffer full")
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) kinds(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, frame := range f.frames {
		env, err := protocol.Decode(frame)
		if err != nil {
			t.Fatalf("recorded frame does not decode: %v", err)
		}
		out = append(out, env.Kind)
	}
	return out
}

func (f *fakeConn) countKind(t *testing.T, kind string) int {
	t.Helper()
	n := 0
	for _, k := range f.kinds(t) {
		if k == kind {
			n++
		}
	}
	return n
}

// lastEvent unmarshals the data of the most recent frame of the given kind
// into out, failing the test when no such frame was recorded.
func (f *fakeConn) lastEvent(t *testing.T, kind string, out any) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.frames) - 1; i >= 0; i-- {
		env, err := protocol.Decode(f.frames[i])
		if err != nil {
			t.Fatalf("recorded frame does not decode: %v", err)
		}
		if env.Kind != kind {
			continue
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("unmarshal %s event: %v", kind, err)
		}
		return
	}
	t.Fatalf("no %s frame recorded", kind)
}

// fakeRoomStore is an in-memory core.RoomStore recording membership writes.
type fakeRoomStore struct {
	mu       sync.Mutex
	rooms    map[domain.RoomID]*domain.Room
	adds     []string
	removes  []string
	touches  int
	counts   int
	failAdd  error
	failFind error
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{rooms: make(map[domain.RoomID]*domain.Room)}
}

func (s *fakeRoomStore) put(room *domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
}

func (s *fakeRoomStore) Find(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind != nil {
		return nil, s.failFind
	}
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := *room
	cp.Members = append([]domain.UserID(nil), room.Members...)
	return &cp, nil
}

func (s *fakeRoomStore) AddMember(_ context.Context, id domain.RoomID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdd != nil {
		return s.failAdd
	}
	if room, ok := s.rooms[id]; ok && !room.HasMember(user) {
		room.Members = append(room.Members, user)
	}
	s.adds = append(s.adds, fmt.Sprintf("%s/%s", id, user))
	return nil
}

func (s *fakeRoomStore) RemoveMember(_ context.Context, id domain.RoomID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[id]; ok {
		for i, m := range room.Members {
			if m == user {
				room.Members = append(room.Members[:i], room.Members[i+1:]...)
				break
			}
		}
	}
	s.removes = append(s.removes, fmt.Sprintf("%s/%s", id, user))
	return nil
}

func (s *fakeRoomStore) TouchActivity(_ context.Context, _ domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches++
	return nil
}

func (s *fakeRoomStore) IncrementMessageCount(_ context.Context, _ domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts++
	return nil
}

func (s *fakeRoomStore) addCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.adds...)
}

func (s *fakeRoomStore) removeCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.removes...)
}

// fakeMessageStore appends in memory with sequential IDs.
type fakeMessageStore struct {
	mu       sync.Mutex
	appended []*domain.ChatMessage
	fail     error
}

func (s *fakeMessageStore) Append(_ context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	stored := *msg
	stored.ID = fmt.Sprintf("msg-%d", len(s.appended)+1)
	stored.CreatedAt = time.Now().UTC()
	s.appended = append(s.appended, &stored)
	return &stored, nil
}

func (s *fakeMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appended)
}

func newTestOrchestrator() (*Orchestrator, *fakeRoomStore, *fakeMessageStore) {
	rooms := newFakeRoomStore()
	msgs := &fakeMessageStore{}
	o := &Orchestrator{
		Registry: NewRegistry(),
		Rooms:    rooms,
		Messages: msgs,
	}
	return o, rooms, msgs
}

func ident(user string) domain.Identity {
	return domain.Identity{UserID: domain.UserID(user), Username: user, DisplayName: user}
}

// connect registers a fresh fake connection under the given user.
func connect(o *Orchestrator, cid, user string) *fakeConn {
	c := &fakeConn{}
	o.Connect(core.ConnID(cid), c, ident(user))
	return c
}

func mustJoin(t *testing.T, o *Orchestrator, cid, room string) {
	t.Helper()
	if err := o.JoinRoom(context.Background(), core.ConnID(cid), room); err != nil {
		t.Fatalf("join %s into %s: %v", cid, room, err)
	}
}
