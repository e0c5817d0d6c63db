package entityapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/authz"
	"github.com/dalemusser/tourdesk/internal/app/system/inputval"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MaxBulkIDs bounds one bulk request.
const MaxBulkIDs = 100

// BulkInput is the body of PUT /api/<entity>/bulk.
type BulkInput struct {
	IDs      []string `json:"ids" validate:"required,min=1,max=100,dive,objectid"`
	Status   *string  `json:"status"`
	Featured *bool    `json:"featured"`
}

// Check validates the status against statuses and requires at least one
// change. It returns the $set document and parsed ids.
func (in BulkInput) Check(statuses []string) (bson.M, []primitive.ObjectID, inputval.Errors) {
	var errs inputval.Errors
	set := bson.M{}
	if in.Status != nil {
		ok := false
		for _, s := range statuses {
			if *in.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			errs.Add("status", "status must be one of: "+strings.Join(statuses, ", "))
		} else {
			set["status"] = *in.Status
		}
	}
	if in.Featured != nil {
		set["featured"] = *in.Featured
	}
	if in.Status == nil && in.Featured == nil {
		errs.Add("status", "status or featured is required")
	}

	ids := make([]primitive.ObjectID, 0, len(in.IDs))
	for _, raw := range in.IDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return set, ids, errs
}

// BulkResult is returned by bulk endpoints.
type BulkResult struct {
	Updated   int      `json:"updated"`
	NotFound  []string `json:"notFound"`
	Unchanged []string `json:"unchanged"`
}

// Ops adapts one store to the generic write helpers.
type Ops[T any] struct {
	EntityType string
	Get        func(ctx context.Context, id primitive.ObjectID) (*T, error)
	Update     func(ctx context.Context, id primitive.ObjectID, set bson.M) (*T, error)
	Delete     func(ctx context.Context, id primitive.ObjectID) (int64, error)
	// Snapshot returns the audited fields of a document.
	Snapshot func(doc *T) map[string]any
	// Prepare adjusts set for one document before it is applied, for
	// example stamping publishedAt. May be nil.
	Prepare func(doc *T, set bson.M) bson.M
}

var (
	errSkip      = errors.New("skip")
	errUnchanged = errors.New("unchanged")
)

// BulkUpdate applies set to every id, one audited commit per item, and
// records BULK_UPDATE for each document changed. Unknown ids are reported
// in NotFound, and documents that already matched set in Unchanged; neither
// is audited or counted. It stops at the first store failure.
func BulkUpdate[T any](ctx context.Context, d *Deps, r *http.Request, ops Ops[T], ids []primitive.ObjectID, set bson.M) (BulkResult, error) {
	res := BulkResult{NotFound: []string{}, Unchanged: []string{}}
	actor := authz.ActorID(r)
	for _, id := range ids {
		err := d.Commit(ctx, r, func(ctx context.Context) (auditlog.Entry, error) {
			before, err := ops.Get(ctx, id)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return auditlog.Entry{}, errSkip
			}
			if err != nil {
				return auditlog.Entry{}, err
			}
			itemSet := set
			if ops.Prepare != nil {
				itemSet = ops.Prepare(before, cloneM(set))
			}
			after, err := ops.Update(ctx, id, itemSet)
			if err != nil {
				return auditlog.Entry{}, err
			}
			oldV, newV := auditlog.Changes(ops.Snapshot(before), ops.Snapshot(after))
			if len(oldV) == 0 && len(newV) == 0 {
				return auditlog.Entry{}, errUnchanged
			}
			return auditlog.Entry{
				ActorID:    actor,
				Action:     audit.ActionBulkUpdate,
				EntityType: ops.EntityType,
				EntityID:   id,
				OldValues:  oldV,
				NewValues:  newV,
			}, nil
		})
		switch {
		case errors.Is(err, errSkip):
			res.NotFound = append(res.NotFound, id.Hex())
		case errors.Is(err, errUnchanged):
			res.Unchanged = append(res.Unchanged, id.Hex())
		case err != nil:
			return res, err
		default:
			res.Updated++
		}
	}
	return res, nil
}

// DeleteOne removes the document and records DELETE with its last snapshot.
// It returns mongo.ErrNoDocuments when id is unknown.
func DeleteOne[T any](ctx context.Context, d *Deps, r *http.Request, ops Ops[T], id primitive.ObjectID) error {
	return d.Commit(ctx, r, func(ctx context.Context) (auditlog.Entry, error) {
		before, err := ops.Get(ctx, id)
		if err != nil {
			return auditlog.Entry{}, err
		}
		n, err := ops.Delete(ctx, id)
		if err != nil {
			return auditlog.Entry{}, err
		}
		if n == 0 {
			return auditlog.Entry{}, mongo.ErrNoDocuments
		}
		return auditlog.Entry{
			ActorID:    authz.ActorID(r),
			Action:     audit.ActionDelete,
			EntityType: ops.EntityType,
			EntityID:   id,
			OldValues:  ops.Snapshot(before),
		}, nil
	})
}

func cloneM(m bson.M) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
