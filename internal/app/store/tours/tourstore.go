// internal/app/store/tours/tourstore.go
package tourstore

import (
	"github.com/dalemusser/tourdesk/internal/app/store/sluggable"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CollectionName is the MongoDB collection for tours.
const CollectionName = "tours"

// SearchFields are matched by the free-text search filter.
var SearchFields = []string{"title", "short_description", "description"}

// Sort is newest first.
var Sort = bson.D{{Key: "created_at", Value: -1}}

// StatsOptions groups tour stats by category and sums views.
var StatsOptions = sluggable.StatsOptions{CategoryField: "category", Views: true}

// Store persists tours.
type Store struct {
	*sluggable.Collection[models.Tour]
}

func New(db *mongo.Database) *Store {
	return &Store{Collection: sluggable.New[models.Tour](db, CollectionName)}
}
