package content

import (
	"net/http"

	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a router with the content endpoints, mounted at
// /api/content.
func Routes(h *Handler, authn *auth.Authenticator) http.Handler {
	r := chi.NewRouter()

	r.Get("/public/{page}", h.Public)

	r.Group(func(gr chi.Router) {
		gr.Use(authn.RequireAuth)
		gr.Use(auth.RequireRole(models.RoleAdmin, models.RoleEditor))

		gr.Get("/", h.List)
		gr.Put("/", h.Upsert)
		gr.Put("/bulk", h.Bulk)
		gr.With(auth.RequireRole(models.RoleAdmin)).Delete("/{id}", h.Delete)
	})

	return r
}
