package sluggable

import (
	"testing"

	"github.com/dalemusser/tourdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFilter_BSON(t *testing.T) {
	yes := true
	f := Filter{
		Status:       "PUBLISHED",
		Featured:     &yes,
		Search:       "lake",
		SearchFields: []string{"title", "description"},
		Equals:       map[string]string{"category": "Nature", "tags": ""},
	}
	q := f.BSON()
	if q["status"] != "PUBLISHED" || q["featured"] != true || q["category"] != "Nature" {
		t.Errorf("BSON() = %v", q)
	}
	if _, ok := q["tags"]; ok {
		t.Error("empty Equals value should be ignored")
	}
	if or, ok := q["$or"].(bson.A); !ok || len(or) != 2 {
		t.Errorf("$or = %v, want two clauses", q["$or"])
	}

	if len((Filter{}).BSON()) != 0 {
		t.Error("zero Filter should render an empty query")
	}
}

func TestStats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	c := db.Collection("tours")

	docs := []any{
		bson.M{"_id": primitive.NewObjectID(), "slug": "a", "status": "PUBLISHED", "featured": true, "category": "Nature", "views": 3},
		bson.M{"_id": primitive.NewObjectID(), "slug": "b", "status": "PUBLISHED", "featured": false, "category": "City", "views": 4},
		bson.M{"_id": primitive.NewObjectID(), "slug": "c", "status": "DRAFT", "featured": false, "category": "Nature", "views": 0},
	}
	if _, err := c.InsertMany(ctx, docs); err != nil {
		t.Fatal(err)
	}

	s := New[doc](db, "tours")
	st, err := s.Stats(ctx, StatsOptions{CategoryField: "category", Views: true})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Total != 3 || st.Featured != 1 || st.TotalViews != 7 {
		t.Errorf("Stats() = %+v", st)
	}
	if st.ByStatus["PUBLISHED"] != 2 || st.ByStatus["DRAFT"] != 1 {
		t.Errorf("ByStatus = %v", st.ByStatus)
	}
	if st.ByCategory["Nature"] != 2 || st.ByCategory["City"] != 1 {
		t.Errorf("ByCategory = %v", st.ByCategory)
	}
	if st.ByRegion != nil {
		t.Errorf("ByRegion should be nil when not requested, got %v", st.ByRegion)
	}
}
