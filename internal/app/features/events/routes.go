package events

import (
	"net/http"

	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a router with the event endpoints, mounted at /api/events.
// Public detail is by id: GET /public/{id}.
func Routes(h *Handler, authn *auth.Authenticator) http.Handler {
	r := chi.NewRouter()

	r.Route("/public", func(pr chi.Router) {
		pr.Get("/", h.ListPublic)
		pr.Get("/featured", h.Featured)
		pr.Get("/{id}", h.GetPublic)
	})

	r.Group(func(gr chi.Router) {
		gr.Use(authn.RequireAuth)
		gr.Use(auth.RequireRole(models.RoleAdmin, models.RoleEditor))

		gr.Get("/", h.List)
		gr.Get("/stats", h.Stats)
		gr.Post("/", h.Create)
		gr.Put("/bulk", h.Bulk)
		gr.Get("/{id}", h.Get)
		gr.Put("/{id}", h.Update)
		gr.With(auth.RequireRole(models.RoleAdmin)).Delete("/{id}", h.Delete)
	})

	return r
}
