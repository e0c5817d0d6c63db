package listquery

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

var tourOpts = Options{DefaultLimit: 12, Statuses: []string{"DRAFT", "PUBLISHED", "ARCHIVED"}}

func TestParse_Defaults(t *testing.T) {
	p, errs := Parse(httptest.NewRequest("GET", "/api/tours", nil), tourOpts)
	require.Empty(t, errs)
	assert.Equal(t, int64(1), p.Page)
	assert.Equal(t, int64(12), p.Limit)
	assert.Nil(t, p.Featured)
	assert.Empty(t, p.Status)
}

func TestParse_Values(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/tours?page=3&limit=100&featured=true&status=published&search=lake&category=Nature&tag=hiking", nil)
	p, errs := Parse(req, tourOpts)
	require.Empty(t, errs)
	assert.Equal(t, int64(3), p.Page)
	assert.Equal(t, int64(100), p.Limit)
	require.NotNil(t, p.Featured)
	assert.True(t, *p.Featured)
	assert.Equal(t, "PUBLISHED", p.Status)
	assert.Equal(t, "lake", p.Search)
	assert.Equal(t, "Nature", p.Category)
	assert.Equal(t, "hiking", p.Tag)
}

func TestParse_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		query string
		path  string
	}{
		{"limit=101", "limit"},
		{"limit=0", "limit"},
		{"limit=abc", "limit"},
		{"page=0", "page"},
		{"page=-2", "page"},
		{"featured=maybe", "featured"},
		{"status=LIVE", "status"},
		{"page=100000000000000000&limit=100", "page"},
		{"page=9223372036854775807", "page"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, errs := Parse(httptest.NewRequest("GET", "/x?"+tt.query, nil), tourOpts)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.path, errs[0].Path)
			assert.Equal(t, "query", errs[0].Location)
		})
	}
}

func TestParse_StatusIgnoredWhenNotAccepted(t *testing.T) {
	p, errs := Parse(httptest.NewRequest("GET", "/public?status=DRAFT", nil), Options{DefaultLimit: 10})
	require.Empty(t, errs)
	assert.Empty(t, p.Status)
}

func TestSearchFilter(t *testing.T) {
	assert.Nil(t, SearchFilter("", "title"))

	f := SearchFilter("a.b(", "title", "excerpt")
	or := f["$or"].(bson.A)
	require.Len(t, or, 2)
	first := or[0].(bson.M)["title"].(bson.M)
	assert.Equal(t, `a\.b\(`, first["$regex"])
	assert.Equal(t, "i", first["$options"])
}

func TestNewPage(t *testing.T) {
	p := Params{Page: 2, Limit: 10}
	page := NewPage([]string{"a", "b"}, p, 12)
	assert.Equal(t, int64(2), page.TotalPages)
	assert.Len(t, page.Items, 2)

	empty := NewPage[string](nil, p, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, int64(0), empty.TotalPages)
}
