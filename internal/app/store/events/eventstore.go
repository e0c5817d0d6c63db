// internal/app/store/events/eventstore.go
package eventstore

import (
	"context"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/storeutil"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "events"

// Store persists events. Events are addressed by id only.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Filter narrows List. Zero values are ignored.
type Filter struct {
	Status   string
	Featured *bool
	Search   string
	// Upcoming keeps events that have not ended by the given time.
	Upcoming *time.Time
}

func (f Filter) bson() bson.M {
	q := bson.M{}
	if sf := listquery.SearchFilter(f.Search, "title", "description", "location"); sf != nil {
		q = sf
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Featured != nil {
		q["featured"] = *f.Featured
	}
	if f.Upcoming != nil {
		q["$and"] = bson.A{bson.M{"$or": bson.A{
			bson.M{"end_date": bson.M{"$gte": *f.Upcoming}},
			bson.M{"end_date": nil, "start_date": bson.M{"$gte": *f.Upcoming}},
		}}}
	}
	return q
}

// GetByID loads an event. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	var e models.Event
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetPublic loads an event only if it has the given status.
func (s *Store) GetPublic(ctx context.Context, id primitive.ObjectID, status string) (*models.Event, error) {
	var e models.Event
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "status": status}).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Insert writes e. The caller assigns _id and timestamps.
func (s *Store) Insert(ctx context.Context, e *models.Event) error {
	_, err := s.c.InsertOne(ctx, e)
	return err
}

// UpdateFields patches an event and returns it after the update.
func (s *Store) UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Event, error) {
	patch := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range set {
		patch[k] = v
	}
	var e models.Event
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": patch}, opts).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Delete removes an event and returns the number deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns events ordered by start date (soonest first) and the total.
func (s *Store) List(ctx context.Context, f Filter, page, limit int64) ([]models.Event, int64, error) {
	filter := f.bson()
	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := storeutil.Paginate(limit, page).SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	events := []models.Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// Stats holds event counts for the dashboard.
type Stats struct {
	Total    int64            `json:"total"`
	Featured int64            `json:"featured"`
	Upcoming int64            `json:"upcoming"`
	ByStatus map[string]int64 `json:"byStatus"`
}

// Stats counts events by status, featured flag and whether they are upcoming.
func (s *Store) Stats(ctx context.Context, now time.Time) (Stats, error) {
	st := Stats{ByStatus: map[string]int64{}}
	var err error
	if st.Total, err = s.c.CountDocuments(ctx, bson.M{}); err != nil {
		return Stats{}, err
	}
	if st.Featured, err = s.c.CountDocuments(ctx, bson.M{"featured": true}); err != nil {
		return Stats{}, err
	}
	if st.Upcoming, err = s.c.CountDocuments(ctx, bson.M{"start_date": bson.M{"$gte": now}}); err != nil {
		return Stats{}, err
	}
	for _, status := range models.PublicationStatuses() {
		n, err := s.c.CountDocuments(ctx, bson.M{"status": status})
		if err != nil {
			return Stats{}, err
		}
		st.ByStatus[status] = n
	}
	return st, nil
}

// CreatedSince returns snapshot fields of events created at or after since.
func (s *Store) CreatedSince(ctx context.Context, since time.Time) ([]bson.M, error) {
	proj := bson.M{"_id": 1, "created_by": 1, "created_at": 1, "title": 1, "status": 1}
	cur, err := s.c.Find(ctx, bson.M{"created_at": bson.M{"$gte": since}}, options.Find().SetProjection(proj))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []bson.M
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
