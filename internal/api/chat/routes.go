package chat

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the chat page and API routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/", h.Page)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", h.GetSession)
		r.Post("/documents", h.UploadDocuments)

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", h.SendMessage)
			r.Delete("/", h.ClearHistory)
			r.Post("/clear", h.ClearHistory)
			r.Get("/export", h.ExportTranscript)
		})
	})
}
