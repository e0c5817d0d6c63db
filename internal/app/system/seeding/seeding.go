// internal/app/system/seeding/seeding.go
package seeding

import (
	"context"

	contentstore "github.com/dalemusser/tourdesk/internal/app/store/content"
	userstore "github.com/dalemusser/tourdesk/internal/app/store/users"
	"github.com/dalemusser/tourdesk/internal/app/system/authutil"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Admin names the account ensured at startup. An empty Email or Password
// skips it.
type Admin struct {
	Email    string
	Password string
	Name     string
}

// DefaultContent is the site copy present on a fresh install.
func DefaultContent() []models.ContentItem {
	return []models.ContentItem{
		{Page: "home", Section: "hero", Key: "title", Type: models.ContentText, Value: "Discover Kazakhstan"},
		{Page: "home", Section: "hero", Key: "subtitle", Type: models.ContentText, Value: "Tours, destinations and events across the steppe"},
		{Page: "footer", Section: "contact", Key: "email", Type: models.ContentText, Value: "info@example.com"},
	}
}

// SeedAll seeds default data if not already present.
func SeedAll(ctx context.Context, db *mongo.Database, admin Admin, logger *zap.Logger) error {
	if err := seedAdmin(ctx, userstore.New(db), admin, logger); err != nil {
		return err
	}
	return seedContent(ctx, contentstore.New(db), logger)
}

// seedAdmin creates the admin, or promotes and reactivates an existing user
// with that email. An existing password is never replaced.
func seedAdmin(ctx context.Context, users *userstore.Store, admin Admin, logger *zap.Logger) error {
	if admin.Email == "" || admin.Password == "" {
		return nil
	}
	name := admin.Name
	if name == "" {
		name = "Administrator"
	}
	hash, err := authutil.HashPassword(admin.Password)
	if err != nil {
		return err
	}
	created, err := users.EnsureAdmin(ctx, admin.Email, name, hash)
	if err != nil {
		logger.Error("failed to seed admin user", zap.String("email", admin.Email), zap.Error(err))
		return err
	}
	if created {
		logger.Info("seeded admin user", zap.String("email", authutil.NormalizeEmail(admin.Email)))
	}
	return nil
}

func seedContent(ctx context.Context, store *contentstore.Store, logger *zap.Logger) error {
	for _, it := range DefaultContent() {
		created, err := store.InsertIfAbsent(ctx, it)
		if err != nil {
			logger.Error("failed to seed content",
				zap.String("page", it.Page),
				zap.String("section", it.Section),
				zap.String("key", it.Key),
				zap.Error(err))
			return err
		}
		if created {
			logger.Info("seeded default content",
				zap.String("page", it.Page),
				zap.String("section", it.Section),
				zap.String("key", it.Key))
		}
	}
	return nil
}
