// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	blogstore "github.com/dalemusser/tourdesk/internal/app/store/blog"
	categorystore "github.com/dalemusser/tourdesk/internal/app/store/categories"
	destinationstore "github.com/dalemusser/tourdesk/internal/app/store/destinations"
	eventstore "github.com/dalemusser/tourdesk/internal/app/store/events"
	tourstore "github.com/dalemusser/tourdesk/internal/app/store/tours"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/tasks"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema setup are complete, but
// before the HTTP handler is built. It starts the background jobs.
//
// Returning a non-nil error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	startTaskRunner(deps.MongoDatabase, appCfg, logger)
	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

func startTaskRunner(db *mongo.Database, appCfg AppConfig, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	store := audit.New(db)
	rec := auditlog.New(store, logger, appCfg.AuditLog)
	tasks.RegisterAuditReconcile(taskRunner, store, rec, auditSources(db), logger)

	taskRunner.Start()
}

// auditSources lists every collection whose creates are audited.
func auditSources(db *mongo.Database) []tasks.AuditSource {
	tours := tourstore.New(db)
	categories := categorystore.New(db)
	posts := blogstore.New(db)
	destinations := destinationstore.New(db)
	events := eventstore.New(db)

	return []tasks.AuditSource{
		{EntityType: audit.EntityTour, CreatedSince: func(ctx context.Context, since time.Time) ([]bson.M, error) {
			return tours.CreatedSince(ctx, since, "title", "slug", "status")
		}},
		{EntityType: audit.EntityCategory, CreatedSince: func(ctx context.Context, since time.Time) ([]bson.M, error) {
			return categories.CreatedSince(ctx, since, "name", "slug", "status")
		}},
		{EntityType: audit.EntityBlogPost, CreatedSince: func(ctx context.Context, since time.Time) ([]bson.M, error) {
			return posts.CreatedSince(ctx, since, "title", "slug", "status")
		}},
		{EntityType: audit.EntityDestination, CreatedSince: func(ctx context.Context, since time.Time) ([]bson.M, error) {
			return destinations.CreatedSince(ctx, since, "name", "slug", "status")
		}},
		{EntityType: audit.EntityEvent, CreatedSince: events.CreatedSince},
	}
}
