package auditapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	userstore "github.com/dalemusser/tourdesk/internal/app/store/users"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/tourdesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type seeded struct {
	h     *Handler
	actor models.User
	tour  primitive.ObjectID
}

func setup(t *testing.T) seeded {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	users := userstore.New(db)
	deps := &entityapi.Deps{
		DB:    db,
		Log:   zap.NewNop(),
		Audit: auditlog.New(store, zap.NewNop(), auditlog.ModeDB),
		Users: users,
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	actor, err := users.Create(ctx, models.User{Email: "ops@tourdesk.kz", Name: "Ops", Active: true})
	require.NoError(t, err)

	tour := primitive.NewObjectID()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	recs := []audit.Record{
		{ActorID: &actor.ID, Action: audit.ActionCreate, EntityType: audit.EntityTour, EntityID: &tour, Timestamp: base},
		{ActorID: &actor.ID, Action: audit.ActionUpdate, EntityType: audit.EntityTour, EntityID: &tour, Timestamp: base.Add(time.Hour)},
		{ActorID: &actor.ID, Action: audit.ActionLogin, EntityType: audit.EntityUser, EntityID: &actor.ID, Timestamp: base.AddDate(0, 0, 2)},
	}
	for _, rec := range recs {
		_, err := store.Insert(ctx, rec)
		require.NoError(t, err)
	}
	return seeded{h: NewHandler(deps, store), actor: actor, tour: tour}
}

func list(t *testing.T, h *Handler, target string) (*httptest.ResponseRecorder, listquery.Page[RecordView]) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.List(rec, testutil.NewAuthenticatedRequest(http.MethodGet, target, testutil.AdminUser()))
	var page listquery.Page[RecordView]
	if rec.Code == http.StatusOK {
		testutil.DecodeEnvelope(t, rec, &page)
	}
	return rec, page
}

func TestList_Filters(t *testing.T) {
	s := setup(t)

	tests := []struct {
		target string
		want   int64
	}{
		{"/api/audit", 3},
		{"/api/audit?action=update", 1},
		{"/api/audit?entityType=TOUR", 2},
		{"/api/audit?entityId=" + s.tour.Hex(), 2},
		{"/api/audit?actorId=" + s.actor.ID.Hex(), 3},
		{"/api/audit?from=2026-05-02", 1},
		{"/api/audit?to=2026-05-01", 2},
		{"/api/audit?from=2026-05-01T12:30:00Z&to=2026-05-01T14:00:00Z", 1},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec, page := list(t, s.h, tt.target)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, page.Total)
		})
	}

	_, page := list(t, s.h, "/api/audit?limit=1")
	require.Len(t, page.Items, 1)
	assert.Equal(t, audit.ActionLogin, page.Items[0].Action, "newest first")
	require.NotNil(t, page.Items[0].Actor)
	assert.Equal(t, "Ops", page.Items[0].Actor.Name)
}

func TestList_BadFilters(t *testing.T) {
	s := setup(t)
	for _, target := range []string{
		"/api/audit?action=PUBLISH",
		"/api/audit?entityType=HOTEL",
		"/api/audit?actorId=xyz",
		"/api/audit?from=yesterday",
		"/api/audit?from=2026-05-03&to=2026-05-01",
	} {
		rec, _ := list(t, s.h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHistory(t *testing.T) {
	s := setup(t)

	rec := httptest.NewRecorder()
	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/", testutil.AdminUser())
	s.h.History(rec, testutil.WithURLParams(req, "entityType", "tour", "entityId", s.tour.Hex()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var views []RecordView
	testutil.DecodeEnvelope(t, rec, &views)
	require.Len(t, views, 2)
	assert.Equal(t, audit.ActionUpdate, views[0].Action)
	assert.Equal(t, audit.ActionCreate, views[1].Action)

	rec = httptest.NewRecorder()
	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/", testutil.AdminUser())
	s.h.History(rec, testutil.WithURLParams(req, "entityType", "HOTEL", "entityId", "nope"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := testutil.DecodeEnvelope(t, rec, nil)
	assert.Len(t, env.Errors, 2)
}
