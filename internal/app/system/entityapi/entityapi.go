// Package entityapi holds the plumbing shared by the content REST features:
// request decoding and validation, the audited write protocol, error to
// status mapping and creator references.
//
// Every write follows the same steps. The handler validates input (400, no
// store access), loads the existing document for update or delete (404),
// resolves a slug where one is needed, then calls Commit (or CommitSlugged)
// whose write function persists the change and returns the audit entry.
// Commit runs the write and the audit insert in one transaction.
package entityapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/sluggable"
	userstore "github.com/dalemusser/tourdesk/internal/app/store/users"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/indexes"
	"github.com/dalemusser/tourdesk/internal/app/system/inputval"
	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/app/system/slug"
	"github.com/dalemusser/tourdesk/internal/app/system/timeouts"
	"github.com/dalemusser/tourdesk/internal/app/system/txn"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Deps are the collaborators every entity handler needs.
type Deps struct {
	DB    *mongo.Database
	Log   *zap.Logger
	Audit *auditlog.Recorder
	Users *userstore.Store
	// ShowErrorDetails adds the underlying error to 500 responses.
	// It is false in production.
	ShowErrorDetails bool
}

// WriteFunc persists one change and returns the audit entry describing it.
type WriteFunc func(ctx context.Context) (auditlog.Entry, error)

// Commit runs write and records its audit entry atomically.
func (d *Deps) Commit(ctx context.Context, r *http.Request, write WriteFunc) error {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Write(), d.Log, "commit")
	defer cancel()
	return txn.Run(ctx, d.DB, d.Log, func(ctx context.Context) error {
		e, err := write(ctx)
		if err != nil {
			return err
		}
		return d.Audit.Record(ctx, r, e)
	})
}

// CommitSlugged is Commit for writes that assign a slug. write must resolve
// the slug itself; a lost race reruns it up to sluggable.MaxSlugAttempts times.
func (d *Deps) CommitSlugged(ctx context.Context, r *http.Request, write WriteFunc) error {
	return sluggable.WithSlugRetry(ctx, func(ctx context.Context) error {
		return d.Commit(ctx, r, write)
	})
}

// Fail maps err to a response. what names the entity in 404 messages.
func (d *Deps) Fail(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		jsonutil.NotFound(w, what+" not found")
	case errors.Is(err, sluggable.ErrSlugConflict):
		jsonutil.Conflict(w, "Could not assign a unique slug, please retry")
	case errors.Is(err, slug.ErrSlugSpaceExhausted):
		jsonutil.Conflict(w, "Too many "+what+" records share this title")
	case indexes.IsDuplicateKeyErr(err):
		jsonutil.Conflict(w, "A record with this value already exists")
	default:
		d.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		details := ""
		if d.ShowErrorDetails {
			details = err.Error()
		}
		jsonutil.InternalError(w, "Internal server error", details)
	}
}

// Decode reads the JSON body into v and validates it. It writes the 400
// response and returns false on failure.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := jsonutil.Decode(r, v); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return false
	}
	if errs := inputval.Validate(v); errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return false
	}
	return true
}

// ParseID reads the "id" route parameter. It writes a 400 response and
// returns false when the value is not an ObjectID.
func ParseID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		jsonutil.ValidationErrors(w, inputval.Errors{
			{Type: "field", Msg: "id must be a valid id", Path: "id", Location: inputval.LocationParam, Value: raw},
		})
		return primitive.NilObjectID, false
	}
	return id, true
}

// ParseList parses list query parameters, writing the 400 response and
// returning false on failure.
func ParseList(w http.ResponseWriter, r *http.Request, opts listquery.Options) (listquery.Params, bool) {
	p, errs := listquery.Parse(r, opts)
	if errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return p, false
	}
	return p, true
}

// Refs loads creator references for ids. A lookup failure is logged and
// yields an empty map; references are decoration, not data.
func (d *Deps) Refs(ctx context.Context, ids ...primitive.ObjectID) map[primitive.ObjectID]*models.UserRef {
	refs, err := d.Users.Refs(ctx, ids)
	if err != nil {
		d.Log.Warn("failed to load user references", zap.Error(err))
		return map[primitive.ObjectID]*models.UserRef{}
	}
	return refs
}

// PublishedAt returns the publish timestamp a document should carry after a
// write that leaves it in status. An existing timestamp never moves.
func PublishedAt(status string, existing *time.Time, now time.Time) *time.Time {
	if existing != nil {
		return existing
	}
	if status == models.StatusPublished {
		t := now.UTC()
		return &t
	}
	return nil
}

// TimeValue renders an optional timestamp for audit snapshots.
func TimeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
