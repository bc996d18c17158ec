package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/protocol"
)

// scriptConn is an in-memory transport: frames pushed to inbound reach the
// read loop, writes are recorded, fail ends the read loop with an error.
type scriptConn struct {
	mu      sync.Mutex
	writes  [][]byte
	inbound chan []byte
	err     error
	once    sync.Once
	done    chan struct{}
}

func newScriptConn() *scriptConn {
	return &scriptConn{inbound: make(chan []byte, 8), done: make(chan struct{})}
}

func (c *scriptConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return websocket.TextMessage, data, nil
	case <-c.done:
		return 0, nil, c.err
	}
}

func (c *scriptConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *scriptConn) Close() error {
	c.fail(errors.New("use of closed connection"))
	return nil
}

func (c *scriptConn) fail(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *scriptConn) writtenKinds(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, w := range c.writes {
		env, err := protocol.Decode(w)
		if err != nil {
			// The closing handshake frame is not an envelope.
			continue
		}
		out = append(out, env.Kind)
	}
	return out
}

// scriptDialer hands out pre-scripted connections in order; past the script
// (or when failing) every dial errors.
type scriptDialer struct {
	mu    sync.Mutex
	conns []*scriptConn
	dials int
	fail  bool
}

func (d *scriptDialer) dial(_ context.Context, _ string, _ http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fail || d.dials > len(d.conns) {
		return nil, errors.New("connection refused")
	}
	return d.conns[d.dials-1], nil
}

func (d *scriptDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBackoffDelay(t *testing.T) {
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}
	for i, w := range want {
		if got := backoffDelay(time.Second, i+1); got != w {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, got, w)
		}
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	c := New("ws://example/api/ws", "tok", WithDialer((&scriptDialer{fail: true}).dial), WithBackoff(time.Hour, 0))
	if err := c.SendChat("AAAAA", "hi"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestDispatchRunsSubscribersInOrder(t *testing.T) {
	conn := newScriptConn()
	d := &scriptDialer{conns: []*scriptConn{conn}}
	c := New("ws://example/api/ws", "tok", WithDialer(d.dial))
	t.Cleanup(func() { c.Close() })

	var mu sync.Mutex
	var order []string
	record := func(tag string) Handler {
		return func(json.RawMessage) {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
		}
	}
	c.On(protocol.KindChatMessage, record("first"))
	second := c.On(protocol.KindChatMessage, record("second"))
	c.On(protocol.KindUserJoined, record("other-kind"))

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	frame, _ := protocol.Encode(protocol.KindChatMessage, protocol.ChatMessageEvent{Content: "hi"})
	conn.inbound <- frame
	waitFor(t, "both subscribers", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	})
	mu.Lock()
	if order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}
	order = nil
	mu.Unlock()

	// After Off only the remaining subscriber fires.
	c.Off(second)
	conn.inbound <- frame
	waitFor(t, "remaining subscriber", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 1
	})
	mu.Lock()
	if order[0] != "first" {
		t.Errorf("order after Off = %v", order)
	}
	mu.Unlock()
}

// An abnormal close reconnects and replays the join for the last room; the
// server keeps no session, so the rejoin is the client's job.
func TestReconnectReplaysJoin(t *testing.T) {
	first := newScriptConn()
	second := newScriptConn()
	d := &scriptDialer{conns: []*scriptConn{first, second}}
	c := New("ws://example/api/ws", "tok", WithDialer(d.dial), WithBackoff(time.Millisecond, 5))
	t.Cleanup(func() { c.Close() })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.JoinRoom("AAAAA"); err != nil {
		t.Fatalf("join: %v", err)
	}

	first.fail(errors.New("connection reset by peer"))

	waitFor(t, "redial", func() bool { return d.dialCount() == 2 })
	waitFor(t, "join replay", func() bool {
		for _, k := range second.writtenKinds(t) {
			if k == protocol.KindJoinRoom {
				return true
			}
		}
		return false
	})
	if c.State() != Open {
		t.Errorf("state = %s, want open", c.State())
	}
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	d := &scriptDialer{fail: true}
	c := New("ws://example/api/ws", "tok", WithDialer(d.dial), WithBackoff(time.Millisecond, 3))
	t.Cleanup(func() { c.Close() })

	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("connect to a refusing server succeeded")
	}

	// The failed connect plus three backed-off retries, then nothing.
	waitFor(t, "retries to finish", func() bool { return d.dialCount() == 4 })
	time.Sleep(20 * time.Millisecond)
	if n := d.dialCount(); n != 4 {
		t.Errorf("dials = %d, want 4", n)
	}
	if c.State() != Closed {
		t.Errorf("state = %s, want closed", c.State())
	}
}

func TestNormalCloseDoesNotReconnect(t *testing.T) {
	conn := newScriptConn()
	d := &scriptDialer{conns: []*scriptConn{conn, newScriptConn()}}
	c := New("ws://example/api/ws", "tok", WithDialer(d.dial), WithBackoff(time.Millisecond, 5))
	t.Cleanup(func() { c.Close() })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn.fail(&websocket.CloseError{Code: websocket.CloseNormalClosure})

	waitFor(t, "closed state", func() bool { return c.State() == Closed })
	time.Sleep(20 * time.Millisecond)
	if n := d.dialCount(); n != 1 {
		t.Errorf("dials = %d, want 1 (no reconnect after a normal close)", n)
	}
}

func TestCloseIsTerminal(t *testing.T) {
	conn := newScriptConn()
	d := &scriptDialer{conns: []*scriptConn{conn, newScriptConn()}}
	c := New("ws://example/api/ws", "tok", WithDialer(d.dial), WithBackoff(time.Millisecond, 5))

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if n := d.dialCount(); n != 1 {
		t.Errorf("dials = %d, want 1 (closed clients stay closed)", n)
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect succeeded on a closed client")
	}
}

func TestDialURLCarriesToken(t *testing.T) {
	c := New("ws://example/api/ws", "se cret")
	if got := c.dialURL(); got != "ws://example/api/ws?token=se+cret" {
		t.Errorf("dialURL = %q", got)
	}
}
