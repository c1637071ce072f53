// Package ws implements the WebSocket event bus: revision-stamped state
// deltas fan out to every observer, and inbound intent frames route into
// the engine with per-frame acks.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/Strob0t/AgentDeck/internal/engine"
	"github.com/Strob0t/AgentDeck/internal/port/broadcast"
)

// Submitter is the slice of the engine the hub needs.
type Submitter interface {
	Submit(ctx context.Context, in engine.Intent) error
}

// conn wraps a single WebSocket connection. Writes are serialized by
// writeMu; the broadcast path and the per-frame ack path share it.
type conn struct {
	ws      *websocket.Conn
	cancel  context.CancelFunc
	writeMu sync.Mutex
}

func (c *conn) write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Hub manages all active WebSocket connections. It implements
// broadcast.Broadcaster. Attach never replays history; a client that
// sees a revision gap re-hydrates through the snapshot query.
type Hub struct {
	log    *slog.Logger
	engine Submitter

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

var _ broadcast.Broadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub routing inbound intents to the
// given submitter. The submitter may be nil at construction and bound
// later with Bind; the hub is built before the engine because the
// engine broadcasts through it.
func NewHub(engine Submitter, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:    log.With("component", "ws"),
		engine: engine,
		conns:  make(map[*conn]struct{}),
	}
}

// Bind attaches the intent sink. Must be called before HandleWS serves
// traffic.
func (h *Hub) Bind(engine Submitter) {
	h.engine = engine
}

// HandleWS upgrades the connection and starts its read loop.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		h.log.Error("websocket accept failed", "error", err)
		return
	}
	ws.SetReadLimit(1 << 20)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &conn{ws: ws, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	h.log.Info("websocket connected", "remote", r.RemoteAddr)

	go h.readLoop(ctx, c)
}

func (h *Hub) readLoop(ctx context.Context, c *conn) {
	defer func() {
		h.remove(c)
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return
		}
		h.handleFrame(ctx, c, data)
	}
}

// handleFrame decodes one inbound intent frame, submits it, and answers
// with an ack or error frame carrying the client's frame id.
func (h *Hub) handleFrame(ctx context.Context, c *conn, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.reply(ctx, c, errorFrame("", "malformed frame: "+err.Error()))
		return
	}
	in, err := decodeIntent(frame.Intent, frame.Payload)
	if err != nil {
		h.reply(ctx, c, errorFrame(frame.ID, err.Error()))
		return
	}
	if h.engine == nil {
		h.reply(ctx, c, errorFrame(frame.ID, "engine unavailable"))
		return
	}
	if err := h.engine.Submit(ctx, in); err != nil {
		h.reply(ctx, c, errorFrame(frame.ID, err.Error()))
		return
	}
	h.reply(ctx, c, ackFrame(frame.ID))
}

func (h *Hub) reply(ctx context.Context, c *conn, frame outboundFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("marshal reply frame", "error", err)
		return
	}
	if err := c.write(ctx, data); err != nil {
		h.log.Debug("websocket reply failed", "error", err)
	}
}

// BroadcastEvent sends one revision-stamped envelope to every observer.
// A slow or dead connection is dropped rather than stalling the rest.
func (h *Hub) BroadcastEvent(ctx context.Context, ev broadcast.Event) {
	data, err := json.Marshal(outboundFrame{
		Type:     frameEvent,
		Event:    ev.Type,
		Revision: ev.Revision,
		Payload:  ev.Payload,
	})
	if err != nil {
		h.log.Error("marshal broadcast event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if err := c.write(ctx, data); err != nil {
			h.log.Debug("websocket write failed, dropping connection", "error", err)
			go h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.cancel()
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.conns, c)
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		h.log.Info("websocket disconnected")
	}
}
