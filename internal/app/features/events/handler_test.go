package events

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	eventstore "github.com/dalemusser/tourdesk/internal/app/store/events"
	userstore "github.com/dalemusser/tourdesk/internal/app/store/users"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newHandler(t *testing.T) (*Handler, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	deps := &entityapi.Deps{
		DB:    db,
		Log:   zap.NewNop(),
		Audit: auditlog.New(audit.New(db), zap.NewNop(), auditlog.ModeDB),
		Users: userstore.New(db),
	}
	h := NewHandler(deps, eventstore.New(db))
	h.now = func() time.Time { return now }
	return h, db
}

func create(t *testing.T, h *Handler, body map[string]any) (int, EventView) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Create(rec, testutil.NewAuthenticatedJSONRequest(http.MethodPost, "/api/events", testutil.AdminUser(), body))
	var v EventView
	if rec.Code == http.StatusCreated {
		testutil.DecodeEnvelope(t, rec, &v)
	}
	return rec.Code, v
}

func day(offset int) string {
	return now.AddDate(0, 0, offset).Format(time.RFC3339)
}

func TestCreate_DateRules(t *testing.T) {
	h, db := newHandler(t)

	code, e := create(t, h, map[string]any{"title": "Nauryz Festival", "startDate": day(10), "endDate": day(12)})
	if code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	if e.Status != "DRAFT" || e.EndDate == nil {
		t.Errorf("event = %+v", e.Event)
	}

	if code, _ := create(t, h, map[string]any{"title": "Backwards", "startDate": day(5), "endDate": day(4)}); code != http.StatusBadRequest {
		t.Errorf("end before start status = %d, want 400", code)
	}
	if code, _ := create(t, h, map[string]any{"title": "No Start"}); code != http.StatusBadRequest {
		t.Errorf("missing startDate status = %d, want 400", code)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, _ := db.Collection("audit_logs").CountDocuments(ctx, bson.M{"entity_type": audit.EntityEvent})
	if n != 1 {
		t.Errorf("audit records = %d, want 1", n)
	}
}

func TestUpdate_MergedDates(t *testing.T) {
	h, _ := newHandler(t)
	_, e := create(t, h, map[string]any{"title": "Concert", "startDate": day(10), "endDate": day(11)})

	put := func(body map[string]any) int {
		rec := httptest.NewRecorder()
		req := testutil.NewAuthenticatedJSONRequest(http.MethodPut, "/api/events/"+e.ID.Hex(), testutil.AdminUser(), body)
		h.Update(rec, testutil.WithURLParams(req, "id", e.ID.Hex()))
		return rec.Code
	}
	if code := put(map[string]any{"startDate": day(20)}); code != http.StatusBadRequest {
		t.Errorf("start after stored end = %d, want 400", code)
	}
	if code := put(map[string]any{"startDate": day(20), "endDate": day(21)}); code != http.StatusOK {
		t.Errorf("valid move = %d, want 200", code)
	}
}

func TestPublic_UpcomingAndByID(t *testing.T) {
	h, _ := newHandler(t)
	_, past := create(t, h, map[string]any{"title": "Past Fair", "startDate": day(-10), "endDate": day(-9), "status": "PUBLISHED"})
	_, ongoing := create(t, h, map[string]any{"title": "Long Expo", "startDate": day(-2), "endDate": day(3), "status": "PUBLISHED"})
	_, soon := create(t, h, map[string]any{"title": "Soon Show", "startDate": day(2), "status": "PUBLISHED"})
	_, draft := create(t, h, map[string]any{"title": "Secret Gig", "startDate": day(1)})

	rec := httptest.NewRecorder()
	h.ListPublic(rec, httptest.NewRequest(http.MethodGet, "/api/events/public?upcoming=true", nil))
	var page listquery.Page[EventView]
	testutil.DecodeEnvelope(t, rec, &page)
	if page.Total != 2 {
		t.Fatalf("upcoming total = %d, want 2", page.Total)
	}
	if page.Items[0].ID != ongoing.ID || page.Items[1].ID != soon.ID {
		t.Errorf("upcoming order = %s, %s", page.Items[0].Title, page.Items[1].Title)
	}

	get := func(id string) int {
		rec := httptest.NewRecorder()
		h.GetPublic(rec, testutil.WithURLParams(httptest.NewRequest(http.MethodGet, "/api/events/public/"+id, nil), "id", id))
		return rec.Code
	}
	if code := get(past.ID.Hex()); code != http.StatusOK {
		t.Errorf("published past event = %d", code)
	}
	if code := get(draft.ID.Hex()); code != http.StatusNotFound {
		t.Errorf("draft event = %d, want 404", code)
	}
	if code := get("not-an-id"); code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", code)
	}
}
