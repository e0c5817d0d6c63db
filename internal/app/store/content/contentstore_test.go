package contentstore

import (
	"testing"

	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/tourdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Upsert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	actor := primitive.NewObjectID()

	first, err := store.Upsert(ctx, "home", "hero", "title", models.ContentText, "Discover Kazakhstan", &actor)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !first.Created() {
		t.Error("first Upsert() should create")
	}

	second, err := store.Upsert(ctx, "home", "hero", "title", models.ContentText, "Visit the Steppe", nil)
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if second.Created() {
		t.Error("second Upsert() should update")
	}
	if second.Item.ID != first.Item.ID {
		t.Errorf("upsert replaced id: %v != %v", second.Item.ID, first.Item.ID)
	}
	if second.Previous.Value != "Discover Kazakhstan" {
		t.Errorf("Previous.Value = %v", second.Previous.Value)
	}
	if second.Item.Value != "Visit the Steppe" {
		t.Errorf("Item.Value = %v", second.Item.Value)
	}
	if second.Item.UpdatedByID == nil || *second.Item.UpdatedByID != actor {
		t.Error("updated_by should keep the last known actor")
	}

	_, total, err := store.List(ctx, "home", "", 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}

func TestStore_InsertIfAbsentAndGrouped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	item := models.ContentItem{Page: "home", Section: "hero", Key: "subtitle", Type: models.ContentText, Value: "a"}
	created, err := store.InsertIfAbsent(ctx, item)
	if err != nil || !created {
		t.Fatalf("InsertIfAbsent() = %v, %v", created, err)
	}
	item.Value = "b"
	created, err = store.InsertIfAbsent(ctx, item)
	if err != nil || created {
		t.Fatalf("second InsertIfAbsent() = %v, %v", created, err)
	}
	if _, err := store.Upsert(ctx, "home", "stats", "tours", models.ContentNumber, 42, nil); err != nil {
		t.Fatal(err)
	}

	items, err := store.ForPage(ctx, "home")
	if err != nil {
		t.Fatal(err)
	}
	g := Grouped(items)
	if g["hero"]["subtitle"] != "a" {
		t.Errorf("hero.subtitle = %v, want a", g["hero"]["subtitle"])
	}
	if _, ok := g["stats"]["tours"]; !ok {
		t.Error("stats.tours missing from grouped content")
	}
}

func TestStore_JSONValueRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := New(db)

	value := map[string]any{"links": []any{"a", "b"}, "count": float64(2)}
	if _, err := s.Upsert(ctx, "home", "nav", "menu", models.ContentJSON, value, nil); err != nil {
		t.Fatal(err)
	}
	it, err := s.Get(ctx, "home", "nav", "menu")
	if err != nil {
		t.Fatal(err)
	}
	got, ok := it.Value.(map[string]any)
	if !ok {
		t.Fatalf("value type = %T, want map[string]any", it.Value)
	}
	if links, ok := got["links"].([]any); !ok || len(links) != 2 {
		t.Errorf("links = %#v", got["links"])
	}
	if got["count"] != float64(2) {
		t.Errorf("count = %#v", got["count"])
	}
}
