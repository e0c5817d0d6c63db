package tours

import (
	"net/http"

	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a router with the tour endpoints.
//
// When mounted at /api/tours:
//   - GET    /public            published tours (search, category, destination, featured)
//   - GET    /public/featured   featured published tours
//   - GET    /public/{slug}     one published tour; counts a view
//   - GET    /                  all tours (admin, editor)
//   - GET    /stats             counts by status and category
//   - POST   /                  create
//   - PUT    /bulk              set status/featured on many
//   - GET    /{id}, PUT /{id}   read, partial update
//   - DELETE /{id}              delete (admin)
func Routes(h *Handler, authn *auth.Authenticator) http.Handler {
	r := chi.NewRouter()

	r.Route("/public", func(pr chi.Router) {
		pr.Get("/", h.ListPublic)
		pr.Get("/featured", h.Featured)
		pr.Get("/{slug}", h.GetPublic)
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
