package media

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	mediastore "github.com/dalemusser/tourdesk/internal/app/store/media"
	userstore "github.com/dalemusser/tourdesk/internal/app/store/users"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/tourdesk/internal/testutil"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// pngBytes is a 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func newHandler(t *testing.T, maxSize int64) (*Handler, *mongo.Database, string) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	dir := t.TempDir()
	files, err := storage.NewLocal(storage.LocalConfig{BasePath: dir, BaseURL: "/uploads"})
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	deps := &entityapi.Deps{
		DB:    db,
		Log:   zap.NewNop(),
		Audit: auditlog.New(audit.New(db), zap.NewNop(), auditlog.ModeDB),
		Users: userstore.New(db),
	}
	return NewHandler(deps, mediastore.New(db), files, maxSize), db, dir
}

func uploadRequest(t *testing.T, name string, data []byte, alt string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	if alt != "" {
		mw.WriteField("alt", alt)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testutil.WithUser(req, testutil.AdminUser())
}

func TestUpload(t *testing.T) {
	h, db, dir := newHandler(t, 0)

	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, "lake.png", pngBytes, "Kolsai lake"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var m models.Media
	testutil.DecodeEnvelope(t, rec, &m)

	if m.MimeType != "image/png" || m.OriginalName != "lake.png" || m.Alt != "Kolsai lake" {
		t.Errorf("media = %+v", m)
	}
	if !regexp.MustCompile(`^\d{13}-[0-9a-f]{8}\.png$`).MatchString(m.Filename) {
		t.Errorf("filename = %q", m.Filename)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	stored, err := mediastore.New(db).GetByID(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`^media/\d{4}/\d{2}/`).MatchString(stored.StoragePath) {
		t.Errorf("storage path = %q", stored.StoragePath)
	}
	if _, err := os.Stat(filepath.Join(dir, stored.StoragePath)); err != nil {
		t.Errorf("stored object missing: %v", err)
	}
	if n, _ := db.Collection("audit_logs").CountDocuments(ctx, bson.M{"entity_type": audit.EntityMedia, "action": audit.ActionCreate}); n != 1 {
		t.Errorf("CREATE records = %d, want 1", n)
	}

	// Delete removes both the record and the object.
	rec = httptest.NewRecorder()
	req := testutil.NewAuthenticatedRequest(http.MethodDelete, "/api/media/"+m.ID.Hex(), testutil.AdminUser())
	h.Delete(rec, testutil.WithURLParams(req, "id", m.ID.Hex()))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if _, err := os.Stat(filepath.Join(dir, stored.StoragePath)); !os.IsNotExist(err) {
		t.Errorf("object still present after delete: %v", err)
	}
}

func TestUpload_Rejections(t *testing.T) {
	h, db, _ := newHandler(t, 64)

	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"sniffed text despite png name", "evil.png", []byte("#!/bin/sh\necho hi\n")},
		{"too large", "big.png", append(append([]byte{}, pngBytes...), make([]byte, 128)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Upload(rec, uploadRequest(t, tt.file, tt.data, ""))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if n, _ := db.Collection("media").CountDocuments(ctx, bson.M{}); n != 0 {
		t.Errorf("media records = %d, want 0", n)
	}
}

func TestList_TypeFilter(t *testing.T) {
	h, _, _ := newHandler(t, 0)
	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, "a.png", pngBytes, ""))

	for q, want := range map[string]int64{"": 1, "?type=image": 1, "?type=application/pdf": 0} {
		rec := httptest.NewRecorder()
		h.List(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/media"+q, testutil.AdminUser()))
		var page listquery.Page[models.Media]
		testutil.DecodeEnvelope(t, rec, &page)
		if page.Total != want {
			t.Errorf("list %q total = %d, want %d", q, page.Total, want)
		}
	}
}

func TestStoragePath(t *testing.T) {
	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	path, name := storagePath(now, ".jpg")
	if filepath.Base(path) != name {
		t.Errorf("path %q does not end in %q", path, name)
	}
	if filepath.Dir(path) != "media/2026/03" {
		t.Errorf("dir = %q", filepath.Dir(path))
	}
	want := fmt.Sprintf("%d-", now.UnixMilli())
	if name[:len(want)] != want || filepath.Ext(name) != ".jpg" {
		t.Errorf("name = %q", name)
	}
}
