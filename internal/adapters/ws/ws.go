// Package ws streams landmark frames over a WebSocket and answers each one
// with the session's smoothed stats.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	service "github.com/okian/combatpower/internal/app"
	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/domain/session"
	"github.com/okian/combatpower/internal/domain/types"
	"github.com/okian/combatpower/pkg/logger"
	"github.com/okian/combatpower/pkg/metrics"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before the connection is dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// readLimit fits a full landmark frame with room to spare.
	readLimit = 64 << 10

	sendBufSize = 16
)

// Client message types.
const (
	TypeFrame  = "frame"
	TypeReset  = "reset"
	TypeFreeze = "freeze"
)

// Server event names.
const (
	EventStats  = "stats"
	EventFrozen = "frozen"
	EventReset  = "reset"
	EventError  = "error"
)

// ErrUnknownType is reported for messages with an unsupported type.
var ErrUnknownType = errors.New("unknown message type")

// Service is what a measurement connection drives.
type Service interface {
	StartSession(ctx context.Context, g scoring.Gender, player int) (types.SessionSnapshot, error)
	FoldFrame(ctx context.Context, id string, lm []pose.Landmark) (session.Frame, error)
	ResetSession(ctx context.Context, id string) error
	FreezeSession(ctx context.Context, id string) (service.Frozen, error)
	EndSession(ctx context.Context, id string) error
}

// Message is a client request. An empty type is a frame.
type Message struct {
	Type      string          `json:"type,omitempty"`
	Landmarks []pose.Landmark `json:"landmarks,omitempty"`
}

// Event is a server reply.
type Event struct {
	Event      string            `json:"event"`
	SessionID  string            `json:"session_id,omitempty"`
	Stats      any               `json:"combat_stats,omitempty"`
	Raw        *scoring.RawStats `json:"raw,omitempty"`
	Frames     int64             `json:"frames,omitempty"`
	TotalPower int               `json:"total_power,omitempty"`
	PeakTotal  int               `json:"peak_total,omitempty"`
	Message    string            `json:"message,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origins are checked at the reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler serves GET /ws/measure. Each connection owns one session, ended
// when the connection closes.
type Handler struct {
	svc    Service
	logger logger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	session string
}

// New creates a measurement handler.
func New(svc Service) *Handler {
	return &Handler{
		svc:     svc,
		logger:  logger.Get().Named("ws"),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP starts a session from the gender and player query parameters,
// upgrades the connection and folds frames on the read loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	q := r.URL.Query()
	player := 0
	if p := q.Get("player"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			http.Error(w, "invalid player", http.StatusBadRequest)
			return
		}
		player = n
	}
	snap, err := h.svc.StartSession(ctx, scoring.Gender(q.Get("gender")), player)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = h.svc.EndSession(ctx, snap.ID)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBufSize), session: snap.ID}
	h.register(c)
	metrics.UpdateWebSocketConnections(1)
	h.logger.Debug(ctx, "connected", logger.String("session_id", snap.ID))
	defer func() {
		h.unregister(c)
		metrics.UpdateWebSocketConnections(-1)
		if err := h.svc.EndSession(ctx, snap.ID); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
			h.logger.Warn(ctx, "end session", logger.String("session_id", snap.ID), logger.Error(err))
		}
		h.logger.Debug(ctx, "disconnected", logger.String("session_id", snap.ID))
	}()

	// announces the session id
	h.push(c, Event{Event: EventReset, SessionID: snap.ID})
	go c.writePump()
	h.readPump(ctx, c)
}

// Run blocks until ctx is cancelled, then closes every connection.
func (h *Handler) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Count returns the number of connected clients.
func (h *Handler) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handle answers one client message.
func (h *Handler) handle(ctx context.Context, c *client, data []byte) Event {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{Event: EventError, Message: "invalid message: " + err.Error()}
	}
	if msg.Type == "" {
		msg.Type = TypeFrame
	}
	metrics.RecordWebSocketMessage(msg.Type)

	switch msg.Type {
	case TypeFrame:
		f, err := h.svc.FoldFrame(ctx, c.session, msg.Landmarks)
		if err != nil {
			return errorEvent(err)
		}
		return Event{Event: EventStats, SessionID: c.session, Stats: f.Stats, Raw: &f.Raw, Frames: f.Frames}
	case TypeReset:
		if err := h.svc.ResetSession(ctx, c.session); err != nil {
			return errorEvent(err)
		}
		return Event{Event: EventReset, SessionID: c.session}
	case TypeFreeze:
		fr, err := h.svc.FreezeSession(ctx, c.session)
		if err != nil {
			return errorEvent(err)
		}
		return Event{Event: EventFrozen, SessionID: c.session, Frames: fr.Frames, TotalPower: fr.TotalPower, PeakTotal: fr.PeakTotal}
	default:
		return errorEvent(fmt.Errorf("%s: %w", msg.Type, ErrUnknownType))
	}
}

func errorEvent(err error) Event {
	return Event{Event: EventError, Message: err.Error()}
}

func (h *Handler) push(c *client, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		metrics.RecordErrorByComponent("ws", "send_buffer_full")
	}
}

func (h *Handler) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Handler) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Handler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// readPump folds messages in arrival order until the connection closes.
func (h *Handler) readPump(ctx context.Context, c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.TextMessage {
			continue
		}
		h.push(c, h.handle(ctx, c, data))
	}
}

// writePump forwards queued events and pings the peer.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
