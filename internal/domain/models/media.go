// internal/domain/models/media.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Media is an uploaded file kept in file storage.
type Media struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Filename     string             `bson:"filename" json:"filename"`
	OriginalName string             `bson:"original_name" json:"originalName"`
	MimeType     string             `bson:"mime_type" json:"mimeType"`
	Size         int64              `bson:"size" json:"size"`
	StoragePath  string             `bson:"storage_path" json:"-"`
	URL          string             `bson:"url" json:"url"`
	Alt          string             `bson:"alt,omitempty" json:"alt,omitempty"`
	UploadedByID primitive.ObjectID `bson:"uploaded_by" json:"uploadedById"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}
