// internal/app/store/categories/categorystore.go
package categorystore

import (
	"context"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/sluggable"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "categories"

var SearchFields = []string{"name", "description"}

// Sort is manual order, then name.
var Sort = bson.D{{Key: "display_order", Value: 1}, {Key: "name", Value: 1}}

var StatsOptions = sluggable.StatsOptions{}

// Store persists categories.
type Store struct {
	*sluggable.Collection[models.Category]
}

func New(db *mongo.Database) *Store {
	return &Store{Collection: sluggable.New[models.Category](db, CollectionName)}
}

// NextDisplayOrder returns one past the highest display order in use, so a
// new category sorts last.
func (s *Store) NextDisplayOrder(ctx context.Context) (int, error) {
	var top models.Category
	opts := options.FindOne().
		SetSort(bson.D{{Key: "display_order", Value: -1}}).
		SetProjection(bson.M{"display_order": 1})
	err := s.Raw().FindOne(ctx, bson.M{}, opts).Decode(&top)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return top.DisplayOrder + 1, nil
}

// SetDisplayOrder sets one category's position. It returns the previous
// order so the caller can audit the change; ok is false when id is unknown.
func (s *Store) SetDisplayOrder(ctx context.Context, id primitive.ObjectID, order int) (prev int, ok bool, err error) {
	var before models.Category
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"display_order": 1})
	err = s.Raw().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"display_order": order, "updated_at": time.Now().UTC()}},
		opts,
	).Decode(&before)
	if err == mongo.ErrNoDocuments {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return before.DisplayOrder, true, nil
}
