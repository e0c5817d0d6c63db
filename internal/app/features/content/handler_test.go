package content

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	contentstore "github.com/dalemusser/tourdesk/internal/app/store/content"
	userstore "github.com/dalemusser/tourdesk/internal/app/store/users"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/tourdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newHandler(t *testing.T) (*Handler, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	deps := &entityapi.Deps{
		DB:    db,
		Log:   zap.NewNop(),
		Audit: auditlog.New(audit.New(db), zap.NewNop(), auditlog.ModeDB),
		Users: userstore.New(db),
	}
	return NewHandler(deps, contentstore.New(db)), db
}

func put(t *testing.T, h *Handler, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Upsert(rec, testutil.NewAuthenticatedJSONRequest(http.MethodPut, "/api/content", testutil.EditorUser(), body))
	return rec
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		typ   string
		value any
		ok    bool
	}{
		{models.ContentText, "hello", true},
		{models.ContentText, 12.0, false},
		{models.ContentRichText, "<b>x</b>", true},
		{models.ContentImage, "https://cdn/x.png", true},
		{models.ContentImage, "x.png", false},
		{models.ContentNumber, 3.5, true},
		{models.ContentNumber, "3.5", false},
		{models.ContentBoolean, true, true},
		{models.ContentBoolean, "true", false},
		{models.ContentJSON, map[string]any{"a": 1.0}, true},
		{models.ContentJSON, []any{"a"}, true},
		{models.ContentJSON, "a", false},
	}
	for _, tt := range tests {
		_, err := coerce(tt.typ, tt.value)
		if (err == nil) != tt.ok {
			t.Errorf("coerce(%s, %#v) err = %v, want ok=%v", tt.typ, tt.value, err, tt.ok)
		}
	}

	got, _ := coerce(models.ContentRichText, `<p>hi</p><script>x()</script>`)
	if got != "<p>hi</p>" {
		t.Errorf("rich text = %q", got)
	}
}

func TestUpsert_CreateThenUpdate(t *testing.T) {
	h, db := newHandler(t)
	body := map[string]any{"page": "home", "section": "hero", "key": "title", "type": "TEXT", "value": "Visit Kazakhstan"}

	rec := put(t, h, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first upsert = %d, body %s", rec.Code, rec.Body.String())
	}
	var first models.ContentItem
	testutil.DecodeEnvelope(t, rec, &first)

	body["value"] = "Discover the Steppe"
	rec = put(t, h, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("second upsert = %d", rec.Code)
	}
	var second models.ContentItem
	testutil.DecodeEnvelope(t, rec, &second)
	if second.ID != first.ID {
		t.Error("upsert by natural key should keep the item id")
	}
	if second.Value != "Discover the Steppe" {
		t.Errorf("value = %v", second.Value)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	for action, want := range map[string]int64{audit.ActionCreate: 1, audit.ActionUpdate: 1} {
		n, _ := db.Collection("audit_logs").CountDocuments(ctx, bson.M{"entity_id": first.ID, "action": action})
		if n != want {
			t.Errorf("%s records = %d, want %d", action, n, want)
		}
	}
}

func TestUpsert_Validation(t *testing.T) {
	h, _ := newHandler(t)
	tests := []struct {
		name string
		body map[string]any
		path string
	}{
		{"bad key", map[string]any{"page": "Home Page", "section": "hero", "key": "title", "type": "TEXT", "value": "x"}, "page"},
		{"bad type", map[string]any{"page": "home", "section": "hero", "key": "title", "type": "HTML", "value": "x"}, "type"},
		{"type mismatch", map[string]any{"page": "home", "section": "stats", "key": "tours", "type": "NUMBER", "value": "many"}, "value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := put(t, h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			env := testutil.DecodeEnvelope(t, rec, nil)
			if len(env.Errors) == 0 || env.Errors[0].Path != tt.path {
				t.Errorf("errors = %+v, want path %q", env.Errors, tt.path)
			}
		})
	}
}

func TestPublicAndBulk(t *testing.T) {
	h, db := newHandler(t)
	put(t, h, map[string]any{"page": "home", "section": "hero", "key": "title", "type": "TEXT", "value": "Old"})

	rec := httptest.NewRecorder()
	body := map[string]any{"items": []map[string]any{
		{"page": "home", "section": "hero", "key": "title", "type": "TEXT", "value": "New"},
		{"page": "home", "section": "stats", "key": "tours", "type": "NUMBER", "value": 42},
		{"page": "home", "section": "flags", "key": "banner", "type": "BOOLEAN", "value": true},
	}}
	h.Bulk(rec, testutil.NewAuthenticatedJSONRequest(http.MethodPut, "/api/content/bulk", testutil.AdminUser(), body))
	var res BulkResult
	testutil.DecodeEnvelope(t, rec, &res)
	if res.Created != 2 || res.Updated != 1 {
		t.Errorf("bulk = created %d updated %d", res.Created, res.Updated)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, _ := db.Collection("audit_logs").CountDocuments(ctx, bson.M{"action": audit.ActionBulkUpdate})
	if n != 1 {
		t.Errorf("BULK_UPDATE records = %d, want 1", n)
	}

	rec = httptest.NewRecorder()
	h.Public(rec, testutil.WithURLParams(httptest.NewRequest(http.MethodGet, "/api/content/public/home", nil), "page", "home"))
	var grouped map[string]map[string]any
	testutil.DecodeEnvelope(t, rec, &grouped)
	if grouped["hero"]["title"] != "New" || grouped["stats"]["tours"] != float64(42) || grouped["flags"]["banner"] != true {
		t.Errorf("grouped = %v", grouped)
	}
}

func TestBulk_RejectsWholeBatch(t *testing.T) {
	h, db := newHandler(t)
	rec := httptest.NewRecorder()
	body := map[string]any{"items": []map[string]any{
		{"page": "home", "section": "hero", "key": "title", "type": "TEXT", "value": "ok"},
		{"page": "home", "section": "hero", "key": "image", "type": "IMAGE", "value": "not-a-url"},
	}}
	h.Bulk(rec, testutil.NewAuthenticatedJSONRequest(http.MethodPut, "/api/content/bulk", testutil.AdminUser(), body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := testutil.DecodeEnvelope(t, rec, nil)
	if len(env.Errors) != 1 || env.Errors[0].Path != "items[1].value" {
		t.Errorf("errors = %+v", env.Errors)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if n, _ := db.Collection("content_items").CountDocuments(ctx, bson.M{}); n != 0 {
		t.Errorf("items written = %d, want 0", n)
	}
}
