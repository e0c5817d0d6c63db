// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ReconcilerUserAgent marks audit records written by AuditReconcileJob.
const ReconcilerUserAgent = "reconciler"

// ReconcileWindow is how far back AuditReconcileJob looks for new documents.
const ReconcileWindow = 24 * time.Hour

// ReconcileGrace excludes documents this young from reconciliation so a
// create still between its entity and audit writes is left alone.
const ReconcileGrace = 5 * time.Minute

// AuditSource lists recently created documents of one audited entity type.
// Each document carries _id, its creator under created_by or author, and the
// snapshot fields to record.
type AuditSource struct {
	EntityType   string
	CreatedSince func(ctx context.Context, since time.Time) ([]bson.M, error)
}

// RegisterAuditReconcile adds AuditReconcileJob to r when rec stores records
// in MongoDB. In log-only or disabled mode there is nothing to reconcile
// against, so it registers nothing and returns false.
func RegisterAuditReconcile(r *Runner, store *audit.Store, rec *auditlog.Recorder, sources []AuditSource, logger *zap.Logger) bool {
	if !rec.Stores() {
		logger.Info("audit reconciliation disabled; audit records are not stored")
		return false
	}
	r.Register(AuditReconcileJob(store, rec, sources, logger))
	return true
}

// AuditReconcileJob backfills CREATE records for documents created in the
// last ReconcileWindow that have none. A create whose audit write failed
// after the entity committed (no transaction support) ends up here.
func AuditReconcileJob(store *audit.Store, rec *auditlog.Recorder, sources []AuditSource, logger *zap.Logger) Job {
	return Job{
		Name:     "audit-reconcile",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Batch(), logger, "audit-reconcile")
			defer cancel()

			now := time.Now().UTC()
			since, until := now.Add(-ReconcileWindow), now.Add(-ReconcileGrace)
			for _, src := range sources {
				n, err := reconcile(ctx, store, rec, src, since, until)
				if err != nil {
					return err
				}
				if n > 0 {
					logger.Info("backfilled missing audit records",
						zap.String("entity_type", src.EntityType),
						zap.Int("count", n))
				}
			}
			return nil
		},
	}
}

func reconcile(ctx context.Context, store *audit.Store, rec *auditlog.Recorder, src AuditSource, since, until time.Time) (int, error) {
	all, err := src.CreatedSince(ctx, since)
	if err != nil {
		return 0, err
	}
	docs := all[:0]
	for _, d := range all {
		if created, ok := d["created_at"].(primitive.DateTime); ok && created.Time().After(until) {
			continue
		}
		docs = append(docs, d)
	}
	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		if id, ok := d["_id"].(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	audited, err := store.EntitiesWithAction(ctx, src.EntityType, audit.ActionCreate, ids)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, d := range docs {
		id, ok := d["_id"].(primitive.ObjectID)
		if !ok || audited[id] {
			continue
		}
		actor, _ := d["created_by"].(primitive.ObjectID)
		if actor.IsZero() {
			actor, _ = d["author"].(primitive.ObjectID)
		}
		snap := map[string]any{}
		for k, v := range d {
			switch k {
			case "_id", "created_by", "author", "created_at":
			default:
				snap[k] = v
			}
		}
		if err := rec.RecordWithUserAgent(ctx, ReconcilerUserAgent, auditlog.Entry{
			ActorID:    actor,
			Action:     audit.ActionCreate,
			EntityType: src.EntityType,
			EntityID:   id,
			NewValues:  snap,
		}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
