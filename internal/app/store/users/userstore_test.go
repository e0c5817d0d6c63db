package userstore

import (
	"errors"
	"testing"

	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/tourdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		Email:  "  Test@Example.com ",
		Name:   "Test User",
		Active: true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID.IsZero() {
		t.Error("Create() did not assign ID")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
	if created.Email != "test@example.com" {
		t.Errorf("Email = %q, want normalized", created.Email)
	}
	if created.Role != models.RoleEditor {
		t.Errorf("Role = %q, want default editor", created.Role)
	}

	got, err := store.GetByEmail(ctx, "TEST@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("GetByEmail() returned %v, want %v", got.ID, created.ID)
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{Email: "dup@example.com", Name: "One"}); err != nil {
		t.Fatal(err)
	}
	_, err := store.Create(ctx, models.User{Email: "DUP@example.com", Name: "Two"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("Create() error = %v, want ErrDuplicateEmail", err)
	}
}

func TestStore_Create_BadRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{Email: "x@example.com", Role: "owner"}); err == nil {
		t.Error("Create() should reject unknown role")
	}
}

func TestStore_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{Email: "a@example.com", Name: "A", Active: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(ctx, models.User{Email: "b@example.com", Name: "B"}); err != nil {
		t.Fatal(err)
	}

	name, role := "Renamed", models.RoleAdmin
	got, err := store.Update(ctx, u.ID, UserUpdate{Name: &name, Role: &role})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Name != name || got.Role != role {
		t.Errorf("Update() = %+v", got)
	}
	if got.Email != "a@example.com" || !got.Active {
		t.Error("Update() changed fields that were not supplied")
	}

	email := "b@example.com"
	if _, err := store.Update(ctx, u.ID, UserUpdate{Email: &email}); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("Update() to taken email error = %v, want ErrDuplicateEmail", err)
	}

	if _, err := store.Update(ctx, primitive.NewObjectID(), UserUpdate{Name: &name}); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("Update() missing user error = %v, want ErrNoDocuments", err)
	}
}

func TestStore_Refs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{Email: "ref@example.com", Name: "Ref"})
	if err != nil {
		t.Fatal(err)
	}
	missing := primitive.NewObjectID()
	refs, err := store.Refs(ctx, []primitive.ObjectID{u.ID, u.ID, missing, primitive.NilObjectID})
	if err != nil {
		t.Fatalf("Refs() error = %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("len(refs) = %d, want 1", len(refs))
	}
	if refs[u.ID].Name != "Ref" || refs[u.ID].Email != "ref@example.com" {
		t.Errorf("refs[u] = %+v", refs[u.ID])
	}
}

func TestStore_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, e := range []string{"ann@example.com", "bob@example.com", "cat@example.com"} {
		if _, err := store.Create(ctx, models.User{Email: e, Name: e[:3]}); err != nil {
			t.Fatal(err)
		}
	}

	users, total, err := store.List(ctx, ListFilter{}, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(users) != 2 {
		t.Errorf("List() total=%d len=%d, want 3 and 2", total, len(users))
	}

	users, total, err = store.List(ctx, ListFilter{Search: "BOB"}, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || users[0].Email != "bob@example.com" {
		t.Errorf("search List() = %v (total %d)", users, total)
	}
}

func TestStore_EnsureAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.EnsureAdmin(ctx, "root@example.com", "Root", "hash")
	if err != nil || !created {
		t.Fatalf("EnsureAdmin() first = %v, %v", created, err)
	}
	created, err = store.EnsureAdmin(ctx, "root@example.com", "Root", "hash")
	if err != nil || created {
		t.Fatalf("EnsureAdmin() second = %v, %v", created, err)
	}

	ed, err := store.Create(ctx, models.User{Email: "ed@example.com", Name: "Ed"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.EnsureAdmin(ctx, "ed@example.com", "Ed", "other"); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetByID(ctx, ed.ID)
	if got.Role != models.RoleAdmin || !got.Active {
		t.Errorf("EnsureAdmin() should promote and activate, got %+v", got)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, _ := store.Create(ctx, models.User{Email: "del@example.com"})
	n, err := store.Delete(ctx, u.ID)
	if err != nil || n != 1 {
		t.Fatalf("Delete() = %d, %v", n, err)
	}
	n, _ = store.Delete(ctx, u.ID)
	if n != 0 {
		t.Errorf("second Delete() = %d, want 0", n)
	}
}

func TestFetcher_FetchUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	f := NewFetcher(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	active, _ := store.Create(ctx, models.User{Email: "on@example.com", Name: "On", Active: true, Role: models.RoleAdmin})
	inactive, _ := store.Create(ctx, models.User{Email: "off@example.com", Name: "Off", Active: false})

	u, err := f.FetchUser(ctx, active.ID.Hex())
	if err != nil {
		t.Fatalf("FetchUser(active) error = %v", err)
	}
	if u.Email != "on@example.com" || u.Role != models.RoleAdmin {
		t.Errorf("FetchUser(active) = %+v", u)
	}

	if _, err := f.FetchUser(ctx, inactive.ID.Hex()); !errors.Is(err, auth.ErrUserInactive) {
		t.Errorf("FetchUser(inactive) error = %v, want ErrUserInactive", err)
	}
	if _, err := f.FetchUser(ctx, primitive.NewObjectID().Hex()); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("FetchUser(unknown) error = %v, want ErrNoDocuments", err)
	}
	if _, err := f.FetchUser(ctx, "not-an-id"); err == nil {
		t.Error("FetchUser(malformed) should fail")
	}
}
