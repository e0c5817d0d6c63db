package authapi

import (
	"net/http"

	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/tourdesk/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /api/auth router. limiter throttles login per client IP
// and may be nil.
func Routes(h *Handler, authn *auth.Authenticator, limiter *ratelimit.Limiter) http.Handler {
	r := chi.NewRouter()

	r.With(limiter.Middleware).Post("/login", h.Login)

	r.Group(func(pr chi.Router) {
		pr.Use(authn.RequireAuth)
		pr.Get("/me", h.Me)
		pr.Post("/logout", h.Logout)
		pr.Put("/password", h.ChangePassword)
	})

	return r
}
