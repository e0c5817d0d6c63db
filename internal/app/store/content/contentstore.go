// internal/app/store/content/contentstore.go
package contentstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/storeutil"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "content_items"

// Store persists page content keyed by (page, section, key).
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

func naturalKey(page, section, key string) bson.M {
	return bson.M{"page": page, "section": section, "key": key}
}

// Get loads one item by its natural key.
func (s *Store) Get(ctx context.Context, page, section, key string) (*models.ContentItem, error) {
	var it models.ContentItem
	if err := s.c.FindOne(ctx, naturalKey(page, section, key)).Decode(&it); err != nil {
		return nil, err
	}
	it.Value = plain(it.Value)
	return &it, nil
}

// GetByID loads one item by _id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ContentItem, error) {
	var it models.ContentItem
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&it); err != nil {
		return nil, err
	}
	it.Value = plain(it.Value)
	return &it, nil
}

// UpsertResult describes one upsert.
type UpsertResult struct {
	Item *models.ContentItem
	// Previous is the item before the write, nil when it was created.
	Previous *models.ContentItem
}

// Created reports whether the upsert inserted a new item.
func (r UpsertResult) Created() bool { return r.Previous == nil }

// Upsert replaces the type and value stored under (page, section, key),
// creating the item when absent. The surrogate _id of an existing item is
// kept.
func (s *Store) Upsert(ctx context.Context, page, section, key, typ string, value any, actor *primitive.ObjectID) (UpsertResult, error) {
	prev, err := s.Get(ctx, page, section, key)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return UpsertResult{}, err
	}

	now := time.Now().UTC()
	set := bson.M{
		"type":       typ,
		"value":      value,
		"updated_at": now,
	}
	if actor != nil {
		set["updated_by"] = *actor
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"page":       page,
			"section":    section,
			"key":        key,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var it models.ContentItem
	if err := s.c.FindOneAndUpdate(ctx, naturalKey(page, section, key), update, opts).Decode(&it); err != nil {
		return UpsertResult{}, err
	}
	it.Value = plain(it.Value)
	return UpsertResult{Item: &it, Previous: prev}, nil
}

// InsertIfAbsent creates the item unless its natural key is taken.
// created is false when an item already existed.
func (s *Store) InsertIfAbsent(ctx context.Context, it models.ContentItem) (created bool, err error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		naturalKey(it.Page, it.Section, it.Key),
		bson.M{"$setOnInsert": bson.M{
			"type":       it.Type,
			"value":      it.Value,
			"created_at": now,
			"updated_at": now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// ForPage returns every item on page ordered by section then key.
func (s *Store) ForPage(ctx context.Context, page string) ([]models.ContentItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "section", Value: 1}, {Key: "key", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"page": page}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	items := []models.ContentItem{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Value = plain(items[i].Value)
	}
	return items, nil
}

// List returns one page of items optionally narrowed to page and section.
func (s *Store) List(ctx context.Context, page, section string, pageNum, limit int64) ([]models.ContentItem, int64, error) {
	filter := bson.M{}
	if page != "" {
		filter["page"] = page
	}
	if section != "" {
		filter["section"] = section
	}
	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := storeutil.Paginate(limit, pageNum).
		SetSort(bson.D{{Key: "page", Value: 1}, {Key: "section", Value: 1}, {Key: "key", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	items := []models.ContentItem{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].Value = plain(items[i].Value)
	}
	return items, total, nil
}

// Delete removes an item by _id and returns the number deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Grouped shapes items as section -> key -> value for the public site.
func Grouped(items []models.ContentItem) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, it := range items {
		sec, ok := out[it.Section]
		if !ok {
			sec = make(map[string]any)
			out[it.Section] = sec
		}
		sec[it.Key] = it.Value
	}
	return out
}

// plain converts driver document and array types in a decoded value to
// map[string]any and []any so JSON values render as objects and arrays.
func plain(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = plain(e)
		}
		return m
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
