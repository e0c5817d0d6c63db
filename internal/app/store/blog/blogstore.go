// internal/app/store/blog/blogstore.go
package blogstore

import (
	"github.com/dalemusser/tourdesk/internal/app/store/sluggable"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CollectionName is the MongoDB collection for blog posts.
const CollectionName = "blog_posts"

var SearchFields = []string{"title", "excerpt", "content"}

// Sort puts the most recently published first; drafts fall back to creation time.
var Sort = bson.D{{Key: "published_at", Value: -1}, {Key: "created_at", Value: -1}}

var StatsOptions = sluggable.StatsOptions{CategoryField: "category", Views: true}

// Store persists blog posts.
type Store struct {
	*sluggable.Collection[models.BlogPost]
}

func New(db *mongo.Database) *Store {
	return &Store{Collection: sluggable.New[models.BlogPost](db, CollectionName)}
}
