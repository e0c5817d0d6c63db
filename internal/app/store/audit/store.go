// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/storeutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Actions
const (
	ActionCreate         = "CREATE"
	ActionUpdate         = "UPDATE"
	ActionDelete         = "DELETE"
	ActionLogin          = "LOGIN"
	ActionLogout         = "LOGOUT"
	ActionPasswordChange = "PASSWORD_CHANGE"
	ActionBulkUpdate     = "BULK_UPDATE"
)

// Entity types
const (
	EntityTour        = "TOUR"
	EntityCategory    = "CATEGORY"
	EntityBlogPost    = "BLOG_POST"
	EntityDestination = "DESTINATION"
	EntityEvent       = "EVENT"
	EntityContent     = "CONTENT"
	EntityMedia       = "MEDIA"
	EntityUser        = "USER"
)

// AllActions returns every recordable action.
func AllActions() []string {
	return []string{ActionCreate, ActionUpdate, ActionDelete, ActionLogin, ActionLogout, ActionPasswordChange, ActionBulkUpdate}
}

// AllEntityTypes returns every auditable entity type.
func AllEntityTypes() []string {
	return []string{EntityTour, EntityCategory, EntityBlogPost, EntityDestination, EntityEvent, EntityContent, EntityMedia, EntityUser}
}

// Record is one immutable audit fact. OldValues and NewValues hold only the
// fields that changed, never full documents.
type Record struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ActorID    *primitive.ObjectID `bson:"actor_id,omitempty" json:"actorId,omitempty"`
	Action     string              `bson:"action" json:"action"`
	EntityType string              `bson:"entity_type" json:"entityType"`
	EntityID   *primitive.ObjectID `bson:"entity_id,omitempty" json:"entityId,omitempty"`
	OldValues  map[string]any      `bson:"old_values,omitempty" json:"oldValues,omitempty"`
	NewValues  map[string]any      `bson:"new_values,omitempty" json:"newValues,omitempty"`
	IPAddress  string              `bson:"ip_address,omitempty" json:"ipAddress,omitempty"`
	UserAgent  string              `bson:"user_agent,omitempty" json:"userAgent,omitempty"`
	Timestamp  time.Time           `bson:"timestamp" json:"timestamp"`
}

// QueryFilter defines filters for querying audit records. Zero values are ignored.
type QueryFilter struct {
	ActorID    *primitive.ObjectID
	Action     string
	EntityType string
	EntityID   *primitive.ObjectID
	From       *time.Time
	To         *time.Time
}

// Store is append-only: it inserts and reads audit records and exposes no
// update or delete.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_logs")}
}

// Insert appends rec. The context may be a transaction session context.
func (s *Store) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (f QueryFilter) bson() bson.M {
	q := bson.M{}
	if f.ActorID != nil {
		q["actor_id"] = *f.ActorID
	}
	if f.Action != "" {
		q["action"] = f.Action
	}
	if f.EntityType != "" {
		q["entity_type"] = f.EntityType
	}
	if f.EntityID != nil {
		q["entity_id"] = *f.EntityID
	}
	if f.From != nil || f.To != nil {
		tq := bson.M{}
		if f.From != nil {
			tq["$gte"] = *f.From
		}
		if f.To != nil {
			tq["$lte"] = *f.To
		}
		q["timestamp"] = tq
	}
	return q
}

// List returns one page of records matching filter, newest first, and the
// total number of matches.
func (s *Store) List(ctx context.Context, filter QueryFilter, page, limit int64) ([]Record, int64, error) {
	q := filter.bson()

	total, err := s.c.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	opts := storeutil.Paginate(limit, page).
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := make([]Record, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Count returns the number of records matching filter.
func (s *Store) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.bson())
}

// ForEntity returns the full history of one entity, newest first.
func (s *Store) ForEntity(ctx context.Context, entityType string, entityID primitive.ObjectID, limit int64) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"entity_type": entityType, "entity_id": entityID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]Record, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EntitiesWithAction returns which of ids already have a record with action
// for entityType.
func (s *Store) EntitiesWithAction(ctx context.Context, entityType, action string, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	found := make(map[primitive.ObjectID]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	vals, err := s.c.Distinct(ctx, "entity_id", bson.M{
		"entity_type": entityType,
		"action":      action,
		"entity_id":   bson.M{"$in": ids},
	})
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		if oid, ok := v.(primitive.ObjectID); ok {
			found[oid] = true
		}
	}
	return found, nil
}
