// Package client implements the resilient signaling connection controller:
// one logical connection with reconnect/backoff, a local subscriber table and
// typed send helpers mirroring the inbound wire kinds.
//
// The server holds no durable session across reconnects, so every reopen
// replays a full join for the last-requested room.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/protocol"
)

// State of the logical connection.
type State int

const (
	Idle State = iota
	Connecting
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by sends while the connection is not open;
// outbound frames are dropped, never queued.
var ErrNotConnected = errors.New("not connected")

// Handler receives the data of a matching inbound frame.
type Handler func(data json.RawMessage)

// Subscription identifies one registered handler; unsubscribe by reference.
type Subscription struct {
	kind string
	fn   Handler
}

// Conn is the minimal websocket surface the controller needs, an
// indirection over *websocket.Conn to ease testing.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	Close() error
}

// DialFunc opens the transport. Replaceable in tests.
type DialFunc func(ctx context.Context, endpoint string, header http.Header) (Conn, error)

func defaultDial(ctx context.Context, endpoint string, header http.Header) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

type Option func(*Client)

// WithBackoff overrides the reconnect base delay and the attempt bound.
func WithBackoff(base time.Duration, maxAttempts int) Option {
	return func(c *Client) {
		c.backoffBase = base
		c.maxAttempts = maxAttempts
	}
}

func WithDialer(dial DialFunc) Option {
	return func(c *Client) { c.dial = dial }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client owns one logical signaling connection.
type Client struct {
	endpoint    string
	token       string
	backoffBase time.Duration
	maxAttempts int
	dial        DialFunc
	log         zerolog.Logger

	mu       sync.Mutex
	state    State
	conn     Conn
	subs     map[string][]*Subscription
	lastRoom string
	attempts int
	manual   bool
	timer    *time.Timer

	writeMu sync.Mutex
}

// New creates a controller for the given websocket endpoint
// (e.g. ws://localhost:8080/api/ws). The token is appended as a
// connection parameter on every dial.
func New(endpoint, token string, opts ...Option) *Client {
	c := &Client{
		endpoint:    endpoint,
		token:       token,
		backoffBase: time.Second,
		maxAttempts: 5,
		dial:        defaultDial,
		log:         log.With().Str("module", "client").Logger(),
		subs:        make(map[string][]*Subscription),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the server. On success the read loop starts and, if a room
// was previously requested, the join is replayed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.manual {
		c.mu.Unlock()
		return errors.New("client closed")
	}
	if c.state == Open || c.state == Connecting {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.mu.Unlock()

	conn, err := c.dial(ctx, c.dialURL(), nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("dial failed")
		c.mu.Lock()
		c.state = Closed
		c.scheduleReconnect()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = Open
	c.attempts = 0
	room := c.lastRoom
	c.mu.Unlock()

	c.log.Info().Msg("connected")
	go c.readLoop(conn)

	if room != "" {
		// Stateless reconnection: the server remembers nothing, rejoin.
		if err := c.JoinRoom(room); err != nil {
			c.log.Warn().Err(err).Str("room", room).Msg("rejoin failed")
		}
	}
	return nil
}

func (c *Client) dialURL() string {
	return c.endpoint + "?token=" + url.QueryEscape(c.token)
}

// Close shuts the connection down for good; no reconnect is attempted.
func (c *Client) Close() error {
	c.mu.Lock()
	c.manual = true
	c.state = Closed
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		c.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}

func (c *Client) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.onClose(err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) onClose(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.manual {
		return
	}
	c.state = Closed
	c.conn = nil
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.log.Info().Msg("connection closed")
		return
	}
	c.log.Warn().Err(err).Msg("connection lost")
	c.scheduleReconnect()
}

// scheduleReconnect arms the next attempt with exponential backoff:
// delay = base x 2^(attempt-1), bounded by the attempt count. Caller holds mu.
func (c *Client) scheduleReconnect() {
	if c.manual {
		return
	}
	if c.attempts >= c.maxAttempts {
		c.log.Warn().Int("attempts", c.attempts).Msg("giving up on reconnect")
		return
	}
	c.attempts++
	delay := backoffDelay(c.backoffBase, c.attempts)
	c.log.Info().Dur("delay", delay).Int("attempt", c.attempts).Int("max", c.maxAttempts).Msg("reconnecting")
	c.timer = time.AfterFunc(delay, func() {
		_ = c.Connect(context.Background())
	})
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}

func (c *Client) dispatch(frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		c.log.Warn().Err(err).Msg("bad inbound frame")
		return
	}

	c.mu.Lock()
	subs := make([]*Subscription, len(c.subs[env.Kind]))
	copy(subs, c.subs[env.Kind])
	c.mu.Unlock()

	// Subscribers run synchronously, in subscription order.
	for _, s := range subs {
		s.fn(env.Data)
	}
}

// On registers a handler for an inbound kind. Multiple independent handlers
// per kind are supported.
func (c *Client) On(kind string, fn Handler) *Subscription {
	sub := &Subscription{kind: kind, fn: fn}
	c.mu.Lock()
	c.subs[kind] = append(c.subs[kind], sub)
	c.mu.Unlock()
	return sub
}

// Off removes a previously registered handler.
func (c *Client) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.subs[sub.kind]
	for i, s := range list {
		if s == sub {
			c.subs[sub.kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Send encodes and writes one frame. Frames sent while the connection is not
// open are dropped with a warning rather than queued.
func (c *Client) Send(kind string, data any) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != Open || conn == nil {
		c.log.Warn().Str("kind", kind).Str("state", state.String()).Msg("not connected, frame dropped")
		return ErrNotConnected
	}

	frame, err := protocol.Encode(kind, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, frame)
}
