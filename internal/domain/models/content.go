// internal/domain/models/content.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Content value types.
const (
	ContentText     = "TEXT"
	ContentRichText = "RICHTEXT"
	ContentImage    = "IMAGE"
	ContentJSON     = "JSON"
	ContentNumber   = "NUMBER"
	ContentBoolean  = "BOOLEAN"
)

// ContentTypes returns all valid content value types.
func ContentTypes() []string {
	return []string{ContentText, ContentRichText, ContentImage, ContentJSON, ContentNumber, ContentBoolean}
}

// IsValidContentType checks if t is a valid content value type.
func IsValidContentType(t string) bool {
	return contains(ContentTypes(), t)
}

// ContentItem is one editable value on a page of the public site.
// (Page, Section, Key) is the natural key and is unique.
type ContentItem struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Page    string             `bson:"page" json:"page"`
	Section string             `bson:"section" json:"section"`
	Key     string             `bson:"key" json:"key"`
	Type    string             `bson:"type" json:"type"`
	Value   any                `bson:"value" json:"value"`

	UpdatedByID *primitive.ObjectID `bson:"updated_by,omitempty" json:"updatedById,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updatedAt"`
}
