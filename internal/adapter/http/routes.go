package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the query surface and the two WebSocket mounts:
// eventWS is the intent/event bus, ptyWS is the terminal multiplexer.
func MountRoutes(r chi.Router, h *Handlers, eventWS, ptyWS http.HandlerFunc) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/snapshot", h.GetSnapshot)
		r.Get("/threads/{id}/entries", h.ListEntries)
		r.Get("/threads/{id}/turn", h.GetTurnStatus)

		r.Post("/attachments", h.UploadAttachment)
		r.Get("/attachments/{id}", h.GetAttachment)
	})

	r.Get("/ws", eventWS)
	r.Get("/ws/pty", ptyWS)
}
