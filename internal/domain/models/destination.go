// internal/domain/models/destination.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Destination is a place tours visit (a canyon, a lake, a city).
type Destination struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Slug        string             `bson:"slug" json:"slug"`
	Description string             `bson:"description" json:"description"`
	Region      string             `bson:"region,omitempty" json:"region,omitempty"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	Gallery     []string           `bson:"gallery,omitempty" json:"gallery"`
	Latitude    *float64           `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude   *float64           `bson:"longitude,omitempty" json:"longitude,omitempty"`

	Status   string `bson:"status" json:"status"`
	Featured bool   `bson:"featured" json:"featured"`
	Views    int64  `bson:"views" json:"views"`

	CreatedByID primitive.ObjectID `bson:"created_by" json:"createdById"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}
