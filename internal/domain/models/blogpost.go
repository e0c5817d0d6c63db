// internal/domain/models/blogpost.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BlogPost is an article on the public blog. Content is sanitized HTML.
type BlogPost struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title      string             `bson:"title" json:"title"`
	Slug       string             `bson:"slug" json:"slug"`
	Excerpt    string             `bson:"excerpt" json:"excerpt"`
	Content    string             `bson:"content" json:"content"`
	CoverImage string             `bson:"cover_image,omitempty" json:"coverImage,omitempty"`
	Category   string             `bson:"category,omitempty" json:"category,omitempty"`
	Tags       []string           `bson:"tags,omitempty" json:"tags"`

	Status      string     `bson:"status" json:"status"`
	Featured    bool       `bson:"featured" json:"featured"`
	Views       int64      `bson:"views" json:"views"`
	PublishedAt *time.Time `bson:"published_at" json:"publishedAt"`

	AuthorID  primitive.ObjectID `bson:"author" json:"authorId"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}
