// internal/app/store/media/mediastore.go
package mediastore

import (
	"context"
	"regexp"

	"github.com/dalemusser/tourdesk/internal/app/store/storeutil"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionName = "media"

// Store persists metadata for uploaded files; the bytes live in file storage.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

func (s *Store) Insert(ctx context.Context, m *models.Media) error {
	_, err := s.c.InsertOne(ctx, m)
	return err
}

// GetByID loads one media record. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Media, error) {
	var m models.Media
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns media newest first. mimePrefix ("image/") narrows by type.
func (s *Store) List(ctx context.Context, mimePrefix string, page, limit int64) ([]models.Media, int64, error) {
	filter := bson.M{}
	if mimePrefix != "" {
		filter["mime_type"] = bson.M{"$regex": "^" + regexp.QuoteMeta(mimePrefix)}
	}
	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := storeutil.Paginate(limit, page).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	items := []models.Media{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
