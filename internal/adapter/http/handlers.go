package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/AgentDeck/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	log         *slog.Logger
	query       *service.Query
	attachments *service.Attachments
}

// NewHandlers creates the handler set.
func NewHandlers(query *service.Query, attachments *service.Attachments, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{log: log.With("component", "http"), query: query, attachments: attachments}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetSnapshot serves the full current state with its revision stamp.
// Clients call it on connect and whenever they observe a revision gap.
func (h *Handlers) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.query.Snapshot(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListEntries serves one page of a thread's entry log.
func (h *Handlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	threadID, ok := urlParamInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	page, err := h.query.Entries(r.Context(), threadID,
		queryInt(r, "offset", 0), queryInt(r, "limit", 0))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetTurnStatus serves the derived status of one thread.
func (h *Handlers) GetTurnStatus(w http.ResponseWriter, r *http.Request) {
	threadID, ok := urlParamInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	view, err := h.query.TurnStatus(r.Context(), threadID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UploadAttachment imports one multipart file field named "file" and
// returns its content address for use in send_message intents.
func (h *Handlers) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	att, err := h.attachments.Import(r.Context(), header.Filename, file)
	if errors.Is(err, service.ErrTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

// GetAttachment serves a stored blob by content address.
func (h *Handlers) GetAttachment(w http.ResponseWriter, r *http.Request) {
	data, err := h.attachments.Read(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
