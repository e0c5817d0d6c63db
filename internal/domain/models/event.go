// internal/domain/models/event.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is a dated happening (festival, concert, seasonal opening).
// Events are addressed by id; they carry no slug.
type Event struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Location    string             `bson:"location" json:"location"`
	StartDate   time.Time          `bson:"start_date" json:"startDate"`
	EndDate     *time.Time         `bson:"end_date,omitempty" json:"endDate,omitempty"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`

	Status   string `bson:"status" json:"status"`
	Featured bool   `bson:"featured" json:"featured"`

	CreatedByID primitive.ObjectID `bson:"created_by" json:"createdById"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}
