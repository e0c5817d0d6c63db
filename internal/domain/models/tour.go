// internal/domain/models/tour.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tour difficulty levels.
const (
	DifficultyEasy        = "EASY"
	DifficultyModerate    = "MODERATE"
	DifficultyChallenging = "CHALLENGING"
)

// Tour is a bookable, marketed itinerary.
type Tour struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title            string             `bson:"title" json:"title"`
	Slug             string             `bson:"slug" json:"slug"`
	Description      string             `bson:"description" json:"description"`
	ShortDescription string             `bson:"short_description" json:"shortDescription"`
	Category         string             `bson:"category" json:"category"`
	Destination      string             `bson:"destination,omitempty" json:"destination,omitempty"`
	Image            string             `bson:"image" json:"image"`
	Gallery          []string           `bson:"gallery,omitempty" json:"gallery"`
	Price            float64            `bson:"price" json:"price"`
	Currency         string             `bson:"currency" json:"currency"`
	DurationDays     int                `bson:"duration_days" json:"durationDays"`
	Difficulty       string             `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	MaxGroupSize     int                `bson:"max_group_size" json:"maxGroupSize"`
	Highlights       []string           `bson:"highlights,omitempty" json:"highlights"`
	Included         []string           `bson:"included,omitempty" json:"included"`

	Status      string     `bson:"status" json:"status"`
	Featured    bool       `bson:"featured" json:"featured"`
	Views       int64      `bson:"views" json:"views"`
	PublishedAt *time.Time `bson:"published_at" json:"publishedAt"`

	CreatedByID primitive.ObjectID `bson:"created_by" json:"createdById"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}
