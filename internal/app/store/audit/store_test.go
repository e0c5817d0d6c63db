package audit

import (
	"testing"
	"time"

	"github.com/dalemusser/tourdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Insert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actor := primitive.NewObjectID()
	entity := primitive.NewObjectID()
	rec, err := store.Insert(ctx, Record{
		ActorID:    &actor,
		Action:     ActionCreate,
		EntityType: EntityTour,
		EntityID:   &entity,
		NewValues:  map[string]any{"title": "Charyn Canyon Tour"},
		IPAddress:  "192.168.1.1",
		UserAgent:  "TestAgent",
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if rec.ID.IsZero() {
		t.Error("Insert() should assign an ID")
	}
	if rec.Timestamp.IsZero() {
		t.Error("Insert() should assign a timestamp")
	}

	history, err := store.ForEntity(ctx, EntityTour, entity, 0)
	if err != nil {
		t.Fatalf("ForEntity() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("ForEntity() returned %d records, want 1", len(history))
	}
	if history[0].NewValues["title"] != "Charyn Canyon Tour" {
		t.Errorf("NewValues = %v", history[0].NewValues)
	}
}

func TestStore_List_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actor := primitive.NewObjectID()
	tour := primitive.NewObjectID()
	post := primitive.NewObjectID()
	base := time.Now().UTC().Add(-time.Hour)

	seed := []Record{
		{ActorID: &actor, Action: ActionCreate, EntityType: EntityTour, EntityID: &tour, Timestamp: base},
		{ActorID: &actor, Action: ActionUpdate, EntityType: EntityTour, EntityID: &tour, Timestamp: base.Add(time.Minute)},
		{ActorID: &actor, Action: ActionCreate, EntityType: EntityBlogPost, EntityID: &post, Timestamp: base.Add(2 * time.Minute)},
		{Action: ActionLogin, EntityType: EntityUser, EntityID: &actor, Timestamp: base.Add(3 * time.Minute)},
	}
	for _, r := range seed {
		if _, err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter QueryFilter
		want   int64
	}{
		{"all", QueryFilter{}, 4},
		{"by entity type", QueryFilter{EntityType: EntityTour}, 2},
		{"by action", QueryFilter{Action: ActionCreate}, 2},
		{"by entity", QueryFilter{EntityType: EntityTour, EntityID: &tour, Action: ActionUpdate}, 1},
		{"by actor", QueryFilter{ActorID: &actor}, 3},
		{"time window", QueryFilter{From: ptrTime(base.Add(90 * time.Second))}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := store.List(ctx, tt.filter, 1, 20)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != tt.want || int64(len(items)) != tt.want {
				t.Errorf("List() total=%d len=%d, want %d", total, len(items), tt.want)
			}
		})
	}

	// newest first, paginated
	items, total, err := store.List(ctx, QueryFilter{}, 2, 3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 4 || len(items) != 1 {
		t.Fatalf("page 2: total=%d len=%d", total, len(items))
	}
	if items[0].Action != ActionCreate || items[0].EntityType != EntityTour {
		t.Errorf("oldest record should land on the last page, got %+v", items[0])
	}
}

func TestStore_EntitiesWithAction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	if _, err := store.Insert(ctx, Record{Action: ActionCreate, EntityType: EntityCategory, EntityID: &a}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Insert(ctx, Record{Action: ActionUpdate, EntityType: EntityCategory, EntityID: &b}); err != nil {
		t.Fatal(err)
	}

	found, err := store.EntitiesWithAction(ctx, EntityCategory, ActionCreate, []primitive.ObjectID{a, b})
	if err != nil {
		t.Fatalf("EntitiesWithAction() error = %v", err)
	}
	if !found[a] || found[b] {
		t.Errorf("found = %v, want only %s", found, a.Hex())
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
