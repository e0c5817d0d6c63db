// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/features/auditapi"
	"github.com/dalemusser/tourdesk/internal/app/features/authapi"
	"github.com/dalemusser/tourdesk/internal/app/features/blog"
	"github.com/dalemusser/tourdesk/internal/app/features/categories"
	"github.com/dalemusser/tourdesk/internal/app/features/content"
	"github.com/dalemusser/tourdesk/internal/app/features/destinations"
	"github.com/dalemusser/tourdesk/internal/app/features/events"
	healthfeature "github.com/dalemusser/tourdesk/internal/app/features/health"
	"github.com/dalemusser/tourdesk/internal/app/features/media"
	"github.com/dalemusser/tourdesk/internal/app/features/tours"
	"github.com/dalemusser/tourdesk/internal/app/features/users"
	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	blogstore "github.com/dalemusser/tourdesk/internal/app/store/blog"
	categorystore "github.com/dalemusser/tourdesk/internal/app/store/categories"
	contentstore "github.com/dalemusser/tourdesk/internal/app/store/content"
	destinationstore "github.com/dalemusser/tourdesk/internal/app/store/destinations"
	eventstore "github.com/dalemusser/tourdesk/internal/app/store/events"
	"github.com/dalemusser/tourdesk/internal/app/store/lockout"
	mediastore "github.com/dalemusser/tourdesk/internal/app/store/media"
	tourstore "github.com/dalemusser/tourdesk/internal/app/store/tours"
	userstore "github.com/dalemusser/tourdesk/internal/app/store/users"
	"github.com/dalemusser/tourdesk/internal/app/system/apicors"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// requestTimeout bounds every request.
const requestTimeout = 30 * time.Second

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	r := chi.NewRouter()

	// Request timeout middleware: prevents requests from hanging indefinitely.
	r.Use(chimw.Timeout(requestTimeout))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// Uploaded media (local storage only)
	if appCfg.StorageType == "local" || appCfg.StorageType == "" {
		r.Handle(appCfg.UploadURL+"/*", fileserver.Handler(appCfg.UploadURL, appCfg.UploadDir))
	}

	r.Route("/api", func(api chi.Router) {
		// Bearer-token API: CORS without credentials.
		api.Use(apicors.Middleware(appCfg.CORSOrigins...))
		mountAPI(api, coreCfg, appCfg, deps, logger)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonutil.NotFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonutil.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r, nil
}

// mountAPI builds the shared collaborators and mounts every /api feature.
func mountAPI(api chi.Router, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	db := deps.MongoDatabase

	userStore := userstore.New(db)
	auditStore := audit.New(db)

	tokens := auth.NewTokenManager(appCfg.JWTSecret, appCfg.JWTExpiresIn)
	// The fetcher reloads the user on each request so deactivation and role
	// changes apply to tokens already issued.
	authn := auth.NewAuthenticator(tokens, userstore.NewFetcher(db), logger)

	ed := &entityapi.Deps{
		DB:               db,
		Log:              logger,
		Audit:            auditlog.New(auditStore, logger, appCfg.AuditLog),
		Users:            userStore,
		ShowErrorDetails: coreCfg.Env != "prod",
	}

	lock := lockout.New(db, appCfg.RateLimitLoginAttempts, appCfg.RateLimitLoginWindow, appCfg.RateLimitLoginLockout)
	limiter := ratelimit.PerMinute(appCfg.LoginRatePerMinute, logger)
	api.Mount("/auth", authapi.Routes(authapi.NewHandler(ed, userStore, tokens, lock), authn, limiter))

	api.Mount("/tours", tours.Routes(tours.NewHandler(ed, tourstore.New(db)), authn))
	api.Mount("/categories", categories.Routes(categories.NewHandler(ed, categorystore.New(db)), authn))
	api.Mount("/blog", blog.Routes(blog.NewHandler(ed, blogstore.New(db)), authn))
	api.Mount("/destinations", destinations.Routes(destinations.NewHandler(ed, destinationstore.New(db)), authn))
	api.Mount("/events", events.Routes(events.NewHandler(ed, eventstore.New(db)), authn))
	api.Mount("/content", content.Routes(content.NewHandler(ed, contentstore.New(db)), authn))
	api.Mount("/media", media.Routes(media.NewHandler(ed, mediastore.New(db), deps.MediaStorage, appCfg.MaxFileSize), authn))

	api.Mount("/users", users.Routes(users.NewHandler(ed, userStore), authn))
	api.Mount("/audit", auditapi.Routes(auditapi.NewHandler(ed, auditStore), authn))
}
