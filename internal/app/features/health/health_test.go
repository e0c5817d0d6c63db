package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/tourdesk/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type downPinger struct{}

func (downPinger) Ping(context.Context, *readpref.ReadPref) error {
	return errors.New("connection refused")
}

func TestHandler_Check(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewHandler(db.Client(), zap.NewNop())

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Check() status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("response status = %q, want %q", resp.Status, "ok")
	}
	if resp.Services["mongodb"] != "ok" {
		t.Errorf("mongodb status = %q, want %q", resp.Services["mongodb"], "ok")
	}
	if resp.Timestamp.IsZero() || resp.Message == "" {
		t.Errorf("missing timestamp or message: %+v", resp)
	}
}

func TestHandler_CheckWithDatabaseDown(t *testing.T) {
	h := NewHandler(downPinger{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Check() status = %d, want %d even with the database down", rec.Code, http.StatusOK)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Services["mongodb"] != "unavailable" {
		t.Errorf("mongodb status = %q, want unavailable", resp.Services["mongodb"])
	}
}

func TestHandler_Ready(t *testing.T) {
	db := testutil.SetupTestDB(t)

	rec := httptest.NewRecorder()
	NewHandler(db.Client(), zap.NewNop()).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Ready() status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	NewHandler(downPinger{}, zap.NewNop()).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Ready() with database down status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestMountRootEndpoints(t *testing.T) {
	r := chi.NewRouter()
	MountRootEndpoints(r, NewHandler(downPinger{}, zap.NewNop()))

	tests := []struct {
		path string
		want int
	}{
		{"/livez", http.StatusOK},
		{"/ready", http.StatusServiceUnavailable},
		{"/readyz", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}
