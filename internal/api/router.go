// Package api implements the thin CRUD surface over jobs and
// templates: it decodes/encodes JSON, validates shape, and otherwise
// defers entirely to core.Storage. It carries no scheduling logic —
// that lives in the materializer, populator, executor, watcher, and
// cleanup loops.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/mono/internal/core"
)

// Handler is the mountable HTTP surface for job and template CRUD,
// wired into infrastructure/http.NewAPIServer as its apiHandler.
type Handler struct {
	store  core.Storage
	router chi.Router
}

// NewHandler constructs a Handler backed by store.
func NewHandler(store core.Storage) *Handler {
	h := &Handler{store: store}
	h.router = h.buildRouter()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.createJob)
		r.Get("/", h.listJobs)
		r.Get("/{id}", h.getJob)
		r.Delete("/{id}", h.deleteJob)
	})

	r.Route("/templates", func(r chi.Router) {
		r.Post("/", h.createTemplate)
		r.Get("/{id}", h.getTemplate)
		r.Patch("/{id}", h.updateTemplate)
		r.Delete("/{id}", h.deleteTemplate)
	})

	return r
}

func logInternal(r *http.Request, op string, err error) {
	slog.ErrorContext(r.Context(), "api handler error", "op", op, "error", err)
}
