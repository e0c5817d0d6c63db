// Package sluggable holds the storage shared by every collection whose
// documents are addressed publicly by a unique slug: tours, categories,
// blog posts and destinations.
//
// Slug uniqueness is enforced twice. ResolveSlug probes for a free
// candidate before a write, and a unique index on "slug" rejects the loser
// of a concurrent race; WithSlugRetry turns that rejection into another
// resolution round.
package sluggable

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/storeutil"
	"github.com/dalemusser/tourdesk/internal/app/system/indexes"
	"github.com/dalemusser/tourdesk/internal/app/system/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxSlugAttempts bounds WithSlugRetry.
const MaxSlugAttempts = 3

// ErrSlugConflict is returned when every attempt lost the slug race.
var ErrSlugConflict = errors.New("slug is already in use")

// Collection is a typed view over one sluggable MongoDB collection.
type Collection[T any] struct {
	c *mongo.Collection
}

// New returns a Collection for the named collection.
func New[T any](db *mongo.Database, name string) *Collection[T] {
	return &Collection[T]{c: db.Collection(name)}
}

// Raw exposes the underlying collection for entity-specific queries.
func (s *Collection[T]) Raw() *mongo.Collection { return s.c }

// SlugExists reports whether a document other than exclude holds candidate.
func (s *Collection[T]) SlugExists(ctx context.Context, candidate string, exclude *primitive.ObjectID) (bool, error) {
	filter := bson.M{"slug": candidate}
	if exclude != nil {
		filter["_id"] = bson.M{"$ne": *exclude}
	}
	n, err := s.c.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResolveSlug derives the base slug of title and returns the first free
// candidate, ignoring the document exclude (its own current slug).
func (s *Collection[T]) ResolveSlug(ctx context.Context, title string, exclude *primitive.ObjectID) (string, error) {
	return slug.Resolve(ctx, slug.Base(title), func(ctx context.Context, candidate string) (bool, error) {
		return s.SlugExists(ctx, candidate, exclude)
	})
}

// GetByID loads one document. Returns mongo.ErrNoDocuments if not found.
func (s *Collection[T]) GetByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	var doc T
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetBySlug loads the document holding slug that also matches extra
// (for example a status gate). extra may be nil.
func (s *Collection[T]) GetBySlug(ctx context.Context, slugValue string, extra bson.M) (*T, error) {
	var doc T
	if err := s.c.FindOne(ctx, withSlug(slugValue, extra)).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ViewBySlug increments the view counter of the matching document and
// returns it after the increment.
func (s *Collection[T]) ViewBySlug(ctx context.Context, slugValue string, extra bson.M) (*T, error) {
	var doc T
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.c.FindOneAndUpdate(ctx, withSlug(slugValue, extra), bson.M{"$inc": bson.M{"views": 1}}, opts).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func withSlug(slugValue string, extra bson.M) bson.M {
	filter := bson.M{"slug": slugValue}
	for k, v := range extra {
		filter[k] = v
	}
	return filter
}

// Insert writes doc. The caller assigns _id and timestamps.
func (s *Collection[T]) Insert(ctx context.Context, doc *T) error {
	_, err := s.c.InsertOne(ctx, doc)
	return err
}

// UpdateFields applies set as a field-level patch, stamps updated_at and
// returns the document after the update. Fields not in set are untouched.
func (s *Collection[T]) UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*T, error) {
	patch := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range set {
		patch[k] = v
	}
	var doc T
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": patch}, opts).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete removes one document and returns the number deleted (0 or 1).
func (s *Collection[T]) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns one page of documents matching filter in sort order, plus
// the total number of matches.
func (s *Collection[T]) List(ctx context.Context, filter bson.M, sort bson.D, page, limit int64) ([]T, int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := storeutil.Paginate(limit, page)
	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	items := []T{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Count returns the number of documents matching filter.
func (s *Collection[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	return s.c.CountDocuments(ctx, filter)
}

// CountBy groups documents by field and returns count per distinct value.
// Documents missing the field are counted under "".
func (s *Collection[T]) CountBy(ctx context.Context, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID    any   `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		key := ""
		switch v := r.ID.(type) {
		case string:
			key = v
		case bool:
			if v {
				key = "true"
			} else {
				key = "false"
			}
		}
		out[key] += r.Count
	}
	return out, nil
}

// CreatedSince returns the ids and snapshot fields of documents created at
// or after since. fields names the BSON fields to project.
func (s *Collection[T]) CreatedSince(ctx context.Context, since time.Time, fields ...string) ([]bson.M, error) {
	proj := bson.M{"_id": 1, "created_by": 1, "author": 1, "created_at": 1}
	for _, f := range fields {
		proj[f] = 1
	}
	cur, err := s.c.Find(ctx, bson.M{"created_at": bson.M{"$gte": since}}, options.Find().SetProjection(proj))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []bson.M
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IsSlugConflict reports whether err is a duplicate-key error on the slug
// index.
func IsSlugConflict(err error) bool {
	return indexes.IsDuplicateKeyErr(err) && strings.Contains(err.Error(), "slug")
}

// WithSlugRetry runs attempt until it succeeds, fails with an error other
// than a slug conflict, or MaxSlugAttempts conflicts occur. attempt must
// resolve the slug afresh on every call.
func WithSlugRetry(ctx context.Context, attempt func(ctx context.Context) error) error {
	for i := 0; i < MaxSlugAttempts; i++ {
		err := attempt(ctx)
		if err == nil || !IsSlugConflict(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return ErrSlugConflict
}
