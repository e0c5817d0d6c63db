// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a back-office account. Public visitors never authenticate.
//
// Email is stored lowercase and is unique across the collection.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	Name         string             `bson:"name" json:"name"`
	PasswordHash string             `bson:"password_hash" json:"-"` // bcrypt hash (never in JSON)
	Role         string             `bson:"role" json:"role"`
	Active       bool               `bson:"active" json:"active"`
	LastLoginAt  *time.Time         `bson:"last_login_at,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// User roles
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// AllRoles returns all valid user roles.
func AllRoles() []string {
	return []string{
		RoleAdmin,
		RoleEditor,
	}
}

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	return contains(AllRoles(), role)
}

// UserRef is the shallow author/creator reference joined into entity responses.
type UserRef struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}

// Ref returns the shallow reference for u.
func (u User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}
