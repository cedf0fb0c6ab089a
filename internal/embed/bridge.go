// Package embed serves the page hosting the remote embedded player and
// relays player commands and events over a websocket. A Bridge is the
// player.Channel of the embed provider.
package embed

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/llehouerou/earworm/internal/player"
)

// ErrNotConnected is returned by Send while no host page is connected.
var ErrNotConnected = errors.New("player page not connected")

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

//go:embed host.html
var hostPage []byte

// Bridge accepts one host page connection at a time; a new connection
// replaces the previous one.
type Bridge struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	conn      *websocket.Conn
	connected chan struct{} // closed while conn != nil
	subs      map[int]func(player.Message)
	nextSub   int
	closed    bool

	writeMu sync.Mutex

	srv *http.Server
	ln  net.Listener
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// New creates a bridge. Call Start to listen, or mount Handler.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		logger: zap.NewNop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		connected: make(chan struct{}),
		subs:      make(map[int]func(player.Message)),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(zap.String("component", "embed-bridge"))
	return b
}

// Handler serves the host page at / and the websocket at /ws.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(hostPage)
	})
	mux.HandleFunc("GET /ws", b.serveWS)
	return mux
}

// Start listens on addr and serves in the background.
func (b *Bridge) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	b.ln = ln
	b.srv = &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := b.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("bridge server stopped", zap.Error(err))
		}
	}()
	b.logger.Info("bridge listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// URL returns the host page address, empty before Start.
func (b *Bridge) URL() string {
	if b.ln == nil {
		return ""
	}
	return "http://" + b.ln.Addr().String() + "/"
}

// Connected reports whether a host page is attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// WaitConnected blocks until a host page is attached or ctx is done.
func (b *Bridge) WaitConnected(ctx context.Context) error {
	b.mu.Lock()
	ch := b.connected
	b.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes a command to the attached host page.
func (b *Bridge) Send(cmd player.Command) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("write %s: %w", cmd.Type, err)
	}
	return nil
}

// Subscribe registers fn for messages from the host page. fn runs on the
// connection's read goroutine.
func (b *Bridge) Subscribe(fn func(player.Message)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Close detaches the host page and stops the server.
func (b *Bridge) Close() error {
	b.mu.Lock()
	b.closed = true
	conn := b.conn
	b.mu.Unlock()

	if conn != nil {
		b.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		b.writeMu.Unlock()
		conn.Close()
	}
	if b.srv != nil {
		return b.srv.Close()
	}
	return nil
}

func (b *Bridge) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close()
		return
	}
	prev := b.conn
	b.conn = conn
	if prev == nil {
		close(b.connected)
	}
	b.mu.Unlock()

	if prev != nil {
		b.logger.Info("host page replaced")
		prev.Close()
	} else {
		b.logger.Info("host page connected", zap.String("remote", r.RemoteAddr))
	}

	done := make(chan struct{})
	go b.pingLoop(conn, done)
	b.readLoop(conn)
	close(done)
	b.detach(conn)
}

func (b *Bridge) detach(conn *websocket.Conn) {
	conn.Close()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != conn {
		return
	}
	b.conn = nil
	b.connected = make(chan struct{})
	b.logger.Info("host page disconnected")
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Warn("read from host page", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var m player.Message
		err = json.Unmarshal(data, &m)
		if err == nil && m.Type == "" {
			err = errors.New("missing type")
		}
		if err != nil {
			b.logger.Warn("dropping malformed message",
				zap.ByteString("data", data),
				zap.Error(fmt.Errorf("%w: %w", player.ErrMessageChannel, err)))
			continue
		}
		b.dispatch(m)
	}
}

func (b *Bridge) dispatch(m player.Message) {
	b.mu.Lock()
	subs := make([]func(player.Message), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(m)
	}
}

func (b *Bridge) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			b.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Verify Bridge implements player.Channel at compile time.
var _ player.Channel = (*Bridge)(nil)
