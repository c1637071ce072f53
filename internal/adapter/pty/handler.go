package pty

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
)

// WorkspaceDirFunc resolves a workspace id to the directory its shells
// start in.
type WorkspaceDirFunc func(ctx context.Context, workspaceID int64) (string, error)

// Handler serves the PTY WebSocket endpoint. It is deliberately separate
// from the event bus: terminal output is high-volume binary data with no
// revision semantics.
type Handler struct {
	log     *slog.Logger
	manager *Manager
	dirFor  WorkspaceDirFunc
}

// NewHandler creates the endpoint handler.
func NewHandler(m *Manager, dirFor WorkspaceDirFunc, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log.With("component", "pty-ws"), manager: m, dirFor: dirFor}
}

// inFrame is one client control message. Input data is base64 so the
// text frame stays binary-safe.
type inFrame struct {
	Type string `json:"type"` // "input" | "resize"
	Data string `json:"data,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}

// sessionFrame announces the bound session id, so a client that started
// without one can reattach later.
type sessionFrame struct {
	Type string `json:"type"` // "session"
	ID   string `json:"id"`
}

// ServeHTTP upgrades the connection, binds it to a session, replays the
// output ring, and then bridges frames both ways until either side goes
// away. Output is sent as binary frames; control messages are JSON text.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := strconv.ParseInt(r.URL.Query().Get("workspace_id"), 10, 64)
	if err != nil || workspaceID <= 0 {
		http.Error(w, "workspace_id required", http.StatusBadRequest)
		return
	}

	dir, err := h.dirFor(r.Context(), workspaceID)
	if err != nil {
		http.Error(w, "unknown workspace", http.StatusNotFound)
		return
	}

	sess, err := h.manager.Session(workspaceID, r.URL.Query().Get("session"), dir)
	if err != nil {
		h.log.Warn("pty session unavailable", "workspace_id", workspaceID, "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		h.log.Error("websocket accept failed", "error", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	if data, err := json.Marshal(sessionFrame{Type: "session", ID: sess.ID}); err == nil {
		if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
			return
		}
	}

	replay, out, detach := sess.Attach()
	defer detach()

	if len(replay) > 0 {
		if err := ws.Write(ctx, websocket.MessageBinary, replay); err != nil {
			return
		}
	}

	// Output pump: session → socket.
	go func() {
		defer cancel()
		for chunk := range out {
			if err := ws.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		}
		// Channel closed: the shell exited.
		_ = ws.Close(websocket.StatusNormalClosure, "session ended")
	}()

	// Input pump: socket → session.
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		h.handleFrame(sess, data)
	}
}

func (h *Handler) handleFrame(sess *Session, data []byte) {
	var frame inFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.log.Debug("malformed pty frame", "error", err)
		return
	}
	switch frame.Type {
	case "input":
		raw, err := base64.StdEncoding.DecodeString(frame.Data)
		if err != nil {
			h.log.Debug("bad input encoding", "error", err)
			return
		}
		if err := sess.Write(raw); err != nil {
			h.log.Debug("pty input failed", "error", err)
		}
	case "resize":
		if frame.Cols == 0 || frame.Rows == 0 {
			return
		}
		if err := sess.Resize(frame.Cols, frame.Rows); err != nil {
			h.log.Debug("pty resize failed", "error", err)
		}
	}
}
