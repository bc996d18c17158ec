// Package signal is the websocket binding of the message router. It owns the
// transport: upgrade, the authentication gate, the read/write pumps and the
// per-kind dispatch. All room and broadcast semantics live in the app layer,
// written against the abstract connection capability.
package signal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/parleyhq/parley/internal/app"
	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/protocol"
)

var ErrBackpressure = errors.New("backpressure")

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Controller accepts signaling connections and routes their frames.
type Controller struct {
	Orch     *app.Orchestrator
	Resolver core.IdentityResolver

	ReadLimit    int64
	WriteTimeout time.Duration
	SendBuffer   int
	ChatLimiter  *RateLimiter
}

// wsConn is the websocket-backed core.SignalConnection.
type wsConn struct {
	conn WSConn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn WSConn, buffer int) *wsConn {
	if buffer <= 0 {
		buffer = 32
	}
	return &wsConn{
		conn: conn,
		send: make(chan core.Frame, buffer),
	}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handshakeToken pulls the identity token from the query string, falling back
// to the Authorization header.
func handshakeToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// HandleWS upgrades the connection, resolves its identity once and, on
// success, registers it and starts the pumps. A failed resolution is
// terminal: the error frame is written synchronously and the socket closed
// without ever entering the registry.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	authCtx, cancelAuth := context.WithTimeout(ctx, 5*time.Second)
	identity, err := ctl.Resolver.Resolve(authCtx, handshakeToken(c.Request))
	cancelAuth()
	if err != nil {
		metrics.AuthFailures.Inc()
		log.Warn().Err(err).Str("module", "signal").Msg("authentication failed")
		ctl.rejectConn(ws)
		return
	}

	cid := core.ConnID(uuid.NewString())
	conn := newWSConn(ws, ctl.SendBuffer)
	log.Info().Str("module", "signal").Str("conn", string(cid)).Str("user", string(identity.UserID)).Msg("new WS connection")

	ctl.Orch.Connect(cid, conn, identity)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, cid, conn)
}

// rejectConn writes the terminal authentication error directly; the pumps
// never start for an unauthenticated socket.
func (ctl *Controller) rejectConn(ws WSConn) {
	frame, err := protocol.Encode(protocol.KindError, protocol.ErrorEvent{
		Code:    protocol.CodeAuthenticationFailed,
		Message: "authentication failed",
	})
	if err == nil {
		_ = ws.SetWriteDeadline(time.Now().Add(ctl.writeTimeout()))
		_ = ws.WriteMessage(websocket.TextMessage, frame)
	}
	_ = ws.Close()
}

func (ctl *Controller) writeTimeout() time.Duration {
	if ctl.WriteTimeout > 0 {
		return ctl.WriteTimeout
	}
	return 5 * time.Second
}
