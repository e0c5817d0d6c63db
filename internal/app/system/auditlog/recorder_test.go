package auditlog

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	"github.com/dalemusser/tourdesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short"))

	exact := strings.Repeat("a", MaxValueLen)
	assert.Equal(t, exact, TruncateString(exact))

	long := strings.Repeat("b", MaxValueLen+1)
	got := TruncateString(long)
	assert.Equal(t, strings.Repeat("b", MaxValueLen)+Ellipsis, got)

	// counts characters, not bytes
	cyr := strings.Repeat("ж", MaxValueLen+10)
	got = TruncateString(cyr)
	assert.Equal(t, MaxValueLen+len(Ellipsis), len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, Ellipsis))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 600)
	in := map[string]any{
		"title":   "Kolsai",
		"content": long,
		"tags":    []string{long, "ok"},
		"price":   12.5,
	}
	out := Truncate(in)

	assert.Equal(t, "Kolsai", out["title"])
	assert.Len(t, out["content"], MaxValueLen+len(Ellipsis))
	assert.Equal(t, 12.5, out["price"])
	tags := out["tags"].([]string)
	assert.Len(t, tags[0], MaxValueLen+len(Ellipsis))
	assert.Equal(t, "ok", tags[1])

	// input untouched
	assert.Len(t, in["content"], 600)
	assert.Nil(t, Truncate(nil))
}

func TestChanges(t *testing.T) {
	before := map[string]any{"title": "A", "status": "DRAFT", "slug": "a"}
	after := map[string]any{"title": "A", "status": "PUBLISHED"}

	oldVals, newVals := Changes(before, after)
	assert.Equal(t, map[string]any{"status": "DRAFT"}, oldVals)
	assert.Equal(t, map[string]any{"status": "PUBLISHED"}, newVals)

	oldVals, newVals = Changes(map[string]any{}, map[string]any{"featured": true})
	assert.Equal(t, map[string]any{"featured": nil}, oldVals)
	assert.Equal(t, map[string]any{"featured": true}, newVals)
}

func TestRecorder_Record(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	rec := New(store, zap.NewNop(), ModeAll)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	req := httptest.NewRequest("POST", "/api/tours", nil)
	req.Header.Set("User-Agent", "TestAgent")
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")

	actor := primitive.NewObjectID()
	entity := primitive.NewObjectID()
	err := rec.Record(ctx, req, Entry{
		ActorID:    actor,
		Action:     audit.ActionCreate,
		EntityType: audit.EntityTour,
		EntityID:   entity,
		NewValues:  map[string]any{"description": strings.Repeat("d", 900)},
	})
	require.NoError(t, err)

	history, err := store.ForEntity(ctx, audit.EntityTour, entity, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	got := history[0]
	assert.Equal(t, audit.ActionCreate, got.Action)
	assert.Equal(t, actor, *got.ActorID)
	assert.Equal(t, "10.0.0.7", got.IPAddress)
	assert.Equal(t, "TestAgent", got.UserAgent)
	assert.Len(t, got.NewValues["description"], MaxValueLen+len(Ellipsis))
}

func TestRecorder_Modes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	entity := primitive.NewObjectID()
	entry := Entry{Action: audit.ActionDelete, EntityType: audit.EntityMedia, EntityID: entity}

	for _, mode := range []string{ModeOff, ModeLog} {
		require.NoError(t, New(store, zap.NewNop(), mode).Record(ctx, nil, entry))
	}
	n, err := store.Count(ctx, audit.QueryFilter{EntityID: &entity})
	require.NoError(t, err)
	assert.Zero(t, n, "off and log modes must not write to MongoDB")

	require.NoError(t, New(store, zap.NewNop(), ModeDB).Record(ctx, nil, entry))
	n, err = store.Count(ctx, audit.QueryFilter{EntityID: &entity})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var nilRecorder *Recorder
	assert.NoError(t, nilRecorder.Record(ctx, nil, entry))
}

func TestRecorder_Stores(t *testing.T) {
	tests := []struct {
		mode string
		want bool
	}{
		{ModeAll, true},
		{ModeDB, true},
		{ModeLog, false},
		{ModeOff, false},
		{"", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, New(nil, nil, tt.mode).Stores(), "mode %q", tt.mode)
	}
	var nilRec *Recorder
	assert.False(t, nilRec.Stores())
}
