package users

import (
	"net/http"

	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the user management router, mounted at /api/users.
// Admin only.
func Routes(h *Handler, authn *auth.Authenticator) http.Handler {
	r := chi.NewRouter()
	r.Use(authn.RequireAuth)
	r.Use(auth.RequireRole(models.RoleAdmin))

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	return r
}
