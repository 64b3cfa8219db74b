package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lyoneil/Botpress/internal/logging"
)

const (
	// DefaultBufferSize is the number of frames queued per connection before dropping.
	DefaultBufferSize = 32

	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

// ClientMeta describes the connection a client frame came from.
type ClientMeta struct {
	SocketID  string
	VisitorID string
	Namespace Namespace
}

// ClientHandler receives the named frames sent by clients.
type ClientHandler func(ctx context.Context, name string, data any, meta ClientMeta)

type conn struct {
	id        string
	ns        Namespace
	visitorID string
	room      string
	ws        *websocket.Conn
	out       chan []byte
}

// Hub tracks websocket connections and routes payloads to them.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*conn
	rooms    map[string]map[string]*conn
	handlers []ClientHandler

	backplane  Backplane
	verifier   TokenVerifier
	upgrader   websocket.Upgrader
	bufferSize int
	logger     *slog.Logger

	dropped atomic.Int64
}

// Option configures the Hub.
type Option func(*Hub)

// WithBackplane distributes payloads and rooms across nodes.
func WithBackplane(b Backplane) Option {
	return func(h *Hub) {
		h.backplane = b
	}
}

// WithTokenVerifier enables the admin namespace.
func WithTokenVerifier(v TokenVerifier) Option {
	return func(h *Hub) {
		h.verifier = v
	}
}

// WithBufferSize overrides DefaultBufferSize.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithCheckOrigin replaces the origin check of websocket upgrades.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates a hub. Without a TokenVerifier admin connections are refused.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		conns:      make(map[string]*conn),
		rooms:      make(map[string]map[string]*conn),
		bufferSize: DefaultBufferSize,
		logger:     logging.NewNop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnClient registers a handler for client frames.
func (h *Hub) OnClient(fn ClientHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

// Send delivers a payload. With a backplane it goes through it, so that every
// node (this one included, through Run) delivers to its own connections.
func (h *Hub) Send(ctx context.Context, p Payload) error {
	if h.backplane != nil {
		if err := h.backplane.Publish(ctx, p); err != nil {
			return fmt.Errorf("failed to publish realtime payload: %w", err)
		}
		return nil
	}
	h.deliver(p)
	return nil
}

// Run consumes the backplane until ctx is done. Without a backplane it just
// waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	if h.backplane == nil {
		<-ctx.Done()
		return nil
	}
	err := h.backplane.Subscribe(ctx, h.deliver)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Hub) deliver(p Payload) {
	frame, err := json.Marshal(Frame{Name: p.EventName, Data: p.Data})
	if err != nil {
		h.logger.Warn("failed to marshal realtime payload", "event", p.EventName, "err", err)
		return
	}
	ns := p.Namespace()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if target := p.Target(); target != "" {
		if c, ok := h.conns[target]; ok && c.ns == ns {
			h.push(c, frame)
			return
		}
		for _, c := range h.rooms[target] {
			if c.ns == ns {
				h.push(c, frame)
			}
		}
		return
	}
	for _, c := range h.conns {
		if c.ns == ns {
			h.push(c, frame)
		}
	}
}

// push must be called with h.mu held.
func (h *Hub) push(c *conn, frame []byte) {
	select {
	case c.out <- frame:
	default:
		h.dropped.Add(1)
		h.logger.Debug("realtime frame dropped", "socket_id", c.id)
	}
}

// Dropped returns the number of frames dropped because a client was too slow.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Connections returns the number of open connections of a namespace.
func (h *Hub) Connections(ns Namespace) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.conns {
		if c.ns == ns {
			n++
		}
	}
	return n
}

// VisitorOfSocket returns the visitor owning a guest socket. Sockets unknown
// locally are looked up on the backplane. An unknown socket, for instance one
// that disconnected meanwhile, reports false without error.
func (h *Hub) VisitorOfSocket(ctx context.Context, socketID string) (string, bool, error) {
	h.mu.RLock()
	c, ok := h.conns[socketID]
	h.mu.RUnlock()
	if ok {
		if c.visitorID == "" {
			return "", false, nil
		}
		return c.visitorID, true, nil
	}
	if h.backplane == nil {
		return "", false, nil
	}

	room, ok, err := h.backplane.RoomOfSocket(ctx, socketID)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		h.logger.Warn("remote socket lookup failed", "socket_id", socketID, "err", err)
		return "", false, nil
	}
	if !ok {
		return "", false, nil
	}
	id, ok := VisitorOfRoom(room)
	return id, ok, nil
}

// ServeGuest upgrades a visitor connection. The visitorId query parameter is required.
func (h *Hub) ServeGuest(w http.ResponseWriter, r *http.Request) {
	visitorID := strings.TrimSpace(r.URL.Query().Get("visitorId"))
	if visitorID == "" {
		http.Error(w, "visitorId is required", http.StatusBadRequest)
		return
	}
	h.serve(w, r, NamespaceGuest, visitorID)
}

// ServeAdmin upgrades an admin connection authenticated by a token, read from
// the token query parameter or a bearer Authorization header.
func (h *Hub) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		http.Error(w, "admin socket disabled", http.StatusNotFound)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if _, err := h.verifier.Verify(token); err != nil {
		h.logger.Debug("admin socket refused", "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.serve(w, r, NamespaceAdmin, r.URL.Query().Get("visitorId"))
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, ns Namespace, visitorID string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "err", err)
		return
	}

	c := &conn{
		id:        uuid.NewString(),
		ns:        ns,
		visitorID: visitorID,
		ws:        ws,
		out:       make(chan []byte, h.bufferSize),
	}
	if ns == NamespaceGuest {
		c.room = RoomOfVisitor(visitorID)
	}

	ctx := context.WithoutCancel(r.Context())
	if err := h.register(ctx, c); err != nil {
		h.logger.Error("socket cannot join its room", "socket_id", c.id, "visitor_id", visitorID, "err", err)
		_ = ws.Close()
		return
	}

	go h.writeLoop(c)
	h.readLoop(ctx, c)
	h.unregister(ctx, c)
}

func (h *Hub) register(ctx context.Context, c *conn) error {
	if c.room != "" && h.backplane != nil {
		if err := h.backplane.Join(ctx, c.id, c.room); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
	if c.room != "" {
		members, ok := h.rooms[c.room]
		if !ok {
			members = make(map[string]*conn)
			h.rooms[c.room] = members
		}
		members[c.id] = c
	}
	h.logger.Debug("socket connected", "socket_id", c.id, "namespace", c.ns)
	return nil
}

func (h *Hub) unregister(ctx context.Context, c *conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	if members, ok := h.rooms[c.room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, c.room)
		}
	}
	close(c.out)
	h.mu.Unlock()

	if c.room != "" && h.backplane != nil {
		if err := h.backplane.Leave(ctx, c.id); err != nil {
			h.logger.Warn("failed to leave room", "socket_id", c.id, "err", err)
		}
	}
	h.logger.Debug("socket disconnected", "socket_id", c.id, "namespace", c.ns)
}

func (h *Hub) writeLoop(c *conn) {
	defer c.ws.Close()
	for frame := range c.out {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Debug("socket write failed", "socket_id", c.id, "err", err)
			return
		}
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) readLoop(ctx context.Context, c *conn) {
	c.ws.SetReadLimit(maxMessageSize)
	meta := ClientMeta{SocketID: c.id, VisitorID: c.visitorID, Namespace: c.ns}
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(message, &f); err != nil {
			h.logger.Debug("invalid client frame", "socket_id", c.id, "err", err)
			continue
		}
		if f.Name == "" {
			continue
		}

		h.mu.RLock()
		handlers := append([]ClientHandler(nil), h.handlers...)
		h.mu.RUnlock()
		for _, fn := range handlers {
			fn(ctx, f.Name, f.Data, meta)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		_ = c.ws.Close()
	}
	return nil
}
