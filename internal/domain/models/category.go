// internal/domain/models/category.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category groups tours for navigation. Categories are ordered manually
// through DisplayOrder.
type Category struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Slug         string             `bson:"slug" json:"slug"`
	Description  string             `bson:"description" json:"description"`
	Image        string             `bson:"image,omitempty" json:"image,omitempty"`
	Icon         string             `bson:"icon,omitempty" json:"icon,omitempty"`
	Status       string             `bson:"status" json:"status"`
	Featured     bool               `bson:"featured" json:"featured"`
	DisplayOrder int                `bson:"display_order" json:"displayOrder"`

	CreatedByID primitive.ObjectID `bson:"created_by" json:"createdById"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}
