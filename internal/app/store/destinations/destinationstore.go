// internal/app/store/destinations/destinationstore.go
package destinationstore

import (
	"github.com/dalemusser/tourdesk/internal/app/store/sluggable"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionName = "destinations"

// RegionField is the filter and stats key for regions.
const RegionField = "region"

var SearchFields = []string{"name", "description", "region"}

var Sort = bson.D{{Key: "created_at", Value: -1}}

var StatsOptions = sluggable.StatsOptions{RegionField: RegionField, Views: true}

// Store persists destinations.
type Store struct {
	*sluggable.Collection[models.Destination]
}

func New(db *mongo.Database) *Store {
	return &Store{Collection: sluggable.New[models.Destination](db, CollectionName)}
}
