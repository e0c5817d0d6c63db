package media

import (
	"net/http"

	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a router with the media endpoints, mounted at /api/media.
// Every route requires an admin or editor.
func Routes(h *Handler, authn *auth.Authenticator) http.Handler {
	r := chi.NewRouter()
	r.Use(authn.RequireAuth)
	r.Use(auth.RequireRole(models.RoleAdmin, models.RoleEditor))

	r.Get("/", h.List)
	r.Post("/", h.Upload)
	r.Get("/{id}", h.Get)
	r.With(auth.RequireRole(models.RoleAdmin)).Delete("/{id}", h.Delete)

	return r
}
