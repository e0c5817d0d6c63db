package sluggable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/tourdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type doc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Slug      string             `bson:"slug"`
	Status    string             `bson:"status"`
	Views     int64              `bson:"views"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func insertTitled(t *testing.T, ctx context.Context, s *Collection[doc], title, status string) doc {
	t.Helper()
	sl, err := s.ResolveSlug(ctx, title, nil)
	if err != nil {
		t.Fatalf("ResolveSlug(%q) error = %v", title, err)
	}
	d := doc{ID: primitive.NewObjectID(), Title: title, Slug: sl, Status: status, CreatedAt: time.Now().UTC()}
	if err := s.Insert(ctx, &d); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return d
}

func TestResolveSlug_Sequential(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := New[doc](db, "tours")

	want := []string{"charyn-canyon", "charyn-canyon-1", "charyn-canyon-2", "charyn-canyon-3"}
	for i, w := range want {
		d := insertTitled(t, ctx, s, "Charyn Canyon", "DRAFT")
		if d.Slug != w {
			t.Errorf("insert %d slug = %q, want %q", i, d.Slug, w)
		}
	}
}

func TestResolveSlug_ExcludesSelf(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := New[doc](db, "tours")

	d := insertTitled(t, ctx, s, "Big Almaty Lake", "DRAFT")
	got, err := s.ResolveSlug(ctx, "Big Almaty Lake!", &d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != d.Slug {
		t.Errorf("ResolveSlug with self excluded = %q, want %q", got, d.Slug)
	}

	got, err = s.ResolveSlug(ctx, "Big Almaty Lake", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "big-almaty-lake-1" {
		t.Errorf("ResolveSlug for other doc = %q, want big-almaty-lake-1", got)
	}
}

func TestUpdateFields_PatchesOnlyGivenFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := New[doc](db, "tours")

	d := insertTitled(t, ctx, s, "Kolsai Lakes", "DRAFT")
	got, err := s.UpdateFields(ctx, d.ID, bson.M{"status": "PUBLISHED"})
	if err != nil {
		t.Fatalf("UpdateFields() error = %v", err)
	}
	if got.Status != "PUBLISHED" {
		t.Errorf("status = %q, want PUBLISHED", got.Status)
	}
	if got.Slug != d.Slug || got.Title != d.Title {
		t.Errorf("untouched fields changed: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("updated_at should be stamped")
	}

	_, err = s.UpdateFields(ctx, primitive.NewObjectID(), bson.M{"status": "DRAFT"})
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("UpdateFields on missing id error = %v, want ErrNoDocuments", err)
	}
}

func TestListAndCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := New[doc](db, "tours")

	for i := 0; i < 5; i++ {
		insertTitled(t, ctx, s, "Tour", "PUBLISHED")
	}
	insertTitled(t, ctx, s, "Tour", "DRAFT")

	items, total, err := s.List(ctx, bson.M{"status": "PUBLISHED"}, bson.D{{Key: "created_at", Value: -1}}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(items))
	}

	items, _, err = s.List(ctx, bson.M{"status": "ARCHIVED"}, nil, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("empty list should be non-nil and empty, got %v", items)
	}

	counts, err := s.CountBy(ctx, "status")
	if err != nil {
		t.Fatal(err)
	}
	if counts["PUBLISHED"] != 5 || counts["DRAFT"] != 1 {
		t.Errorf("CountBy(status) = %v", counts)
	}
}

func TestViewBySlug(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := New[doc](db, "tours")

	d := insertTitled(t, ctx, s, "Altyn Emel", "PUBLISHED")
	insertTitled(t, ctx, s, "Hidden", "DRAFT")

	got, err := s.ViewBySlug(ctx, d.Slug, bson.M{"status": "PUBLISHED"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Views != 1 {
		t.Errorf("views = %d, want 1", got.Views)
	}

	if _, err := s.ViewBySlug(ctx, "hidden", bson.M{"status": "PUBLISHED"}); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("draft should not be viewable, err = %v", err)
	}
}

func TestWithSlugRetry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := New[doc](db, "tours")

	taken := insertTitled(t, ctx, s, "Race", "DRAFT")

	// The first attempt reuses the stale slug and loses to the unique index;
	// the second resolves afresh.
	calls := 0
	var final doc
	err := WithSlugRetry(ctx, func(ctx context.Context) error {
		calls++
		sl := taken.Slug
		if calls > 1 {
			var err error
			if sl, err = s.ResolveSlug(ctx, "Race", nil); err != nil {
				return err
			}
		}
		final = doc{ID: primitive.NewObjectID(), Title: "Race", Slug: sl}
		return s.Insert(ctx, &final)
	})
	if err != nil {
		t.Fatalf("WithSlugRetry() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if final.Slug != "race-1" {
		t.Errorf("slug = %q, want race-1", final.Slug)
	}

	calls = 0
	err = WithSlugRetry(ctx, func(ctx context.Context) error {
		calls++
		return s.Insert(ctx, &doc{ID: primitive.NewObjectID(), Slug: taken.Slug})
	})
	if !errors.Is(err, ErrSlugConflict) {
		t.Errorf("error = %v, want ErrSlugConflict", err)
	}
	if calls != MaxSlugAttempts {
		t.Errorf("calls = %d, want %d", calls, MaxSlugAttempts)
	}
}
