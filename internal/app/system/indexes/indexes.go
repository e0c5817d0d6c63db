// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// SluggableCollections lists the collections whose slug field is unique.
var SluggableCollections = []string{"tours", "categories", "blog_posts", "destinations"}

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	for _, name := range SluggableCollections {
		if err := ensureSluggable(ctx, db, name); err != nil {
			problems = append(problems, name+": "+err.Error())
		}
	}
	if err := ensureTours(ctx, db); err != nil {
		problems = append(problems, "tours: "+err.Error())
	}
	if err := ensureBlogPosts(ctx, db); err != nil {
		problems = append(problems, "blog_posts: "+err.Error())
	}
	if err := ensureCategories(ctx, db); err != nil {
		problems = append(problems, "categories: "+err.Error())
	}
	if err := ensureEvents(ctx, db); err != nil {
		problems = append(problems, "events: "+err.Error())
	}
	if err := ensureContent(ctx, db); err != nil {
		problems = append(problems, "content_items: "+err.Error())
	}
	if err := ensureMedia(ctx, db); err != nil {
		problems = append(problems, "media: "+err.Error())
	}
	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureAuditLogs(ctx, db); err != nil {
		problems = append(problems, "audit_logs: "+err.Error())
	}
	if err := ensureLoginLockouts(ctx, db); err != nil {
		problems = append(problems, "login_lockouts: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolVal(b *bool) bool { return b != nil && *b }

// IsDuplicateKeyErr reports an E11000 violation across driver error shapes.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// ensureIndexSet creates each model unless an index with the same keys and
// uniqueness already exists. A same-keys index with different uniqueness is
// dropped and recreated.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listExisting(ctx, coll)

	for _, m := range models {
		var name string
		var unique bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = boolVal(m.Options.Unique)
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[sig]; ok {
			if boolVal(ex.Unique) == unique {
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if unique && IsDuplicateKeyErr(err) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", unique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

// ensureSluggable enforces slug uniqueness at the store layer. The resolver
// probes before writing; this index turns a lost race into a duplicate-key
// error instead of a second document with the same slug.
func ensureSluggable(ctx context.Context, db *mongo.Database, name string) error {
	return ensureIndexSet(ctx, db.Collection(name), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_" + name + "_slug"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_" + name + "_status_created"),
		},
		{
			Keys:    bson.D{{Key: "featured", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_" + name + "_featured_status"),
		},
	})
}

func ensureTours(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("tours"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_tours_category_status"),
		},
	})
}

func ensureBlogPosts(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("blog_posts"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tags", Value: 1}},
			Options: options.Index().SetName("idx_blog_posts_tags"),
		},
	})
}

func ensureCategories(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("categories"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "display_order", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_categories_order_name"),
		},
	})
}

func ensureEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "start_date", Value: 1}},
			Options: options.Index().SetName("idx_events_status_start"),
		},
	})
}

func ensureContent(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("content_items"), []mongo.IndexModel{
		// Natural key; upserts replace by this triple.
		{
			Keys: bson.D{
				{Key: "page", Value: 1},
				{Key: "section", Value: 1},
				{Key: "key", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_content_page_section_key"),
		},
	})
}

func ensureMedia(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("media"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_media_created"),
		},
		{
			Keys:    bson.D{{Key: "mime_type", Value: 1}},
			Options: options.Index().SetName("idx_media_mime"),
		},
	})
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("idx_users_role_active"),
		},
	})
}

func ensureAuditLogs(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("audit_logs"), []mongo.IndexModel{
		// History of one entity
		{
			Keys: bson.D{
				{Key: "entity_type", Value: 1},
				{Key: "entity_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_entity"),
		},
		{
			Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_actor"),
		},
		{
			Keys:    bson.D{{Key: "action", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_action"),
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
	})
}

func ensureLoginLockouts(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("login_lockouts"), []mongo.IndexModel{
		// Forget stale counters after a day
		{
			Keys:    bson.D{{Key: "last_attempt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(86400).SetName("ttl_login_lockouts_last_attempt"),
		},
	})
}
