// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/storeutil"
	"github.com/dalemusser/tourdesk/internal/app/system/authutil"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateEmail is returned when another user already has the email.
var ErrDuplicateEmail = errors.New("a user with this email already exists")

var errBadRole = errors.New("invalid role")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by email (case-insensitive). Returns
// mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": authutil.NormalizeEmail(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Refs loads shallow references for ids. Unknown ids are absent from the map.
func (s *Store) Refs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.UserRef, error) {
	out := make(map[primitive.ObjectID]*models.UserRef, len(ids))
	uniq := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	if len(uniq) == 0 {
		return out, nil
	}

	proj := options.Find().SetProjection(bson.M{"_id": 1, "name": 1, "email": 1})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": uniq}}, proj)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.Ref()
	}
	return out, nil
}

// Create inserts a new user. Email is normalized; role defaults to editor.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = authutil.NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = models.RoleEditor
	}
	if !models.IsValidRole(u.Role) {
		return models.User{}, errBadRole
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// UserUpdate holds the fields that can be changed. Nil fields are untouched.
type UserUpdate struct {
	Name         *string
	Email        *string
	Role         *string
	Active       *bool
	PasswordHash *string
}

// Update patches a user and returns it after the update.
// Returns ErrDuplicateEmail if the email already belongs to another user.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd UserUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Email != nil {
		set["email"] = authutil.NormalizeEmail(*upd.Email)
	}
	if upd.Role != nil {
		if !models.IsValidRole(*upd.Role) {
			return nil, errBadRole
		}
		set["role"] = *upd.Role
	}
	if upd.Active != nil {
		set["active"] = *upd.Active
	}
	if upd.PasswordHash != nil {
		set["password_hash"] = *upd.PasswordHash
	}

	var u models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &u, nil
}

// TouchLogin records a successful login.
func (s *Store) TouchLogin(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_login_at": time.Now().UTC()}})
	return err
}

// Delete deletes a user by ID.
// Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListFilter narrows List. Zero values are ignored.
type ListFilter struct {
	Search string
	Role   string
	Active *bool
}

// List returns one page of users, newest first, and the total match count.
func (s *Store) List(ctx context.Context, f ListFilter, page, limit int64) ([]models.User, int64, error) {
	filter := bson.M{}
	if sf := listquery.SearchFilter(f.Search, "name", "email"); sf != nil {
		filter = sf
	}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Active != nil {
		filter["active"] = *f.Active
	}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := storeutil.Paginate(limit, page).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// EnsureAdmin creates an active admin with the given credentials, or promotes
// and reactivates the existing user with that email. The password of an
// existing user is left alone. created reports whether a new user was made.
func (s *Store) EnsureAdmin(ctx context.Context, email, name, passwordHash string) (created bool, err error) {
	existing, err := s.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return false, err
	}
	if existing != nil {
		if existing.Role == models.RoleAdmin && existing.Active {
			return false, nil
		}
		role, active := models.RoleAdmin, true
		_, err := s.Update(ctx, existing.ID, UserUpdate{Role: &role, Active: &active})
		return false, err
	}
	_, err = s.Create(ctx, models.User{
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
		Active:       true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
