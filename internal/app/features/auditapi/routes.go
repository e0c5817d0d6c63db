package auditapi

import (
	"net/http"

	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /api/audit router. Admin only and read-only.
func Routes(h *Handler, authn *auth.Authenticator) http.Handler {
	r := chi.NewRouter()
	r.Use(authn.RequireAuth)
	r.Use(auth.RequireRole(models.RoleAdmin))

	r.Get("/", h.List)
	r.Get("/{entityType}/{entityId}", h.History)

	return r
}
