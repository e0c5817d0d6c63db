// Package media handles uploads to file storage and the media library.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	mediastore "github.com/dalemusser/tourdesk/internal/app/store/media"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/authz"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultLimit = 24
	// DefaultMaxFileSize is used when no limit is configured (5 MiB).
	DefaultMaxFileSize = 5 << 20
	maxAltLen          = 300
	// multipart framing allowance on top of the file itself
	formOverhead = 1 << 20
)

// allowed maps accepted MIME types to the extension stored.
var allowed = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

type Handler struct {
	deps    *entityapi.Deps
	store   *mediastore.Store
	files   storage.Store
	maxSize int64
	now     func() time.Time
}

// NewHandler returns a media handler. maxSize <= 0 selects
// DefaultMaxFileSize.
func NewHandler(deps *entityapi.Deps, store *mediastore.Store, files storage.Store, maxSize int64) *Handler {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Handler{deps: deps, store: store, files: files, maxSize: maxSize, now: time.Now}
}

func snapshot(m *models.Media) map[string]any {
	return map[string]any{
		"filename":     m.Filename,
		"originalName": m.OriginalName,
		"mimeType":     m.MimeType,
		"size":         m.Size,
		"url":          m.URL,
	}
}

// storagePath returns media/YYYY/MM/<unix-ms>-<8 hex><ext>.
func storagePath(now time.Time, ext string) (path, filename string) {
	filename = fmt.Sprintf("%d-%s%s", now.UnixMilli(), uuid.New().String()[:8], ext)
	return fmt.Sprintf("media/%04d/%02d/%s", now.Year(), int(now.Month()), filename), filename
}

// Upload handles POST /api/media (multipart: file, alt).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+formOverhead)
	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonutil.BadRequest(w, fmt.Sprintf("File exceeds the %d byte limit", h.maxSize))
			return
		}
		jsonutil.BadRequest(w, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonutil.BadRequest(w, "No file uploaded")
		return
	}
	defer file.Close()
	if header.Size > h.maxSize {
		jsonutil.BadRequest(w, fmt.Sprintf("File exceeds the %d byte limit", h.maxSize))
		return
	}
	alt := strings.TrimSpace(r.FormValue("alt"))
	if len(alt) > maxAltLen {
		jsonutil.BadRequest(w, fmt.Sprintf("alt must be at most %d characters", maxAltLen))
		return
	}

	// The declared Content-Type is ignored; the bytes decide.
	mt, err := mimetype.DetectReader(file)
	if err != nil {
		h.deps.Fail(w, r, err, "Media")
		return
	}
	mime := strings.SplitN(mt.String(), ";", 2)[0]
	ext, ok := allowed[mime]
	if !ok {
		jsonutil.BadRequest(w, "Invalid file type. Allowed: JPEG, PNG, WebP, GIF, PDF")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.deps.Fail(w, r, err, "Media")
		return
	}

	now := h.now().UTC()
	path, filename := storagePath(now, ext)
	if err := h.files.Put(r.Context(), path, file, &storage.PutOptions{ContentType: mime}); err != nil {
		h.deps.Fail(w, r, err, "Media")
		return
	}

	m := models.Media{
		ID:           primitive.NewObjectID(),
		Filename:     filename,
		OriginalName: filepath.Base(header.Filename),
		MimeType:     mime,
		Size:         header.Size,
		StoragePath:  path,
		URL:          h.files.URL(path),
		Alt:          alt,
		UploadedByID: authz.ActorID(r),
		CreatedAt:    now,
	}
	err = h.deps.Commit(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
		if err := h.store.Insert(ctx, &m); err != nil {
			return auditlog.Entry{}, err
		}
		return auditlog.Entry{
			ActorID:    m.UploadedByID,
			Action:     audit.ActionCreate,
			EntityType: audit.EntityMedia,
			EntityID:   m.ID,
			NewValues:  snapshot(&m),
		}, nil
	})
	if err != nil {
		if derr := h.files.Delete(context.WithoutCancel(r.Context()), path); derr != nil {
			h.deps.Log.Warn("failed to remove orphaned upload", zap.String("path", path), zap.Error(derr))
		}
		h.deps.Fail(w, r, err, "Media")
		return
	}
	jsonutil.Created(w, m)
}

// List handles GET /api/media. type=image narrows to images.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit})
	if !ok {
		return
	}
	prefix := ""
	if t := strings.ToLower(query.Get(r, "type")); t != "" {
		prefix = t
		if !strings.Contains(t, "/") {
			prefix = t + "/"
		}
	}
	items, total, err := h.store.List(r.Context(), prefix, p.Page, p.Limit)
	if err != nil {
		h.deps.Fail(w, r, err, "Media")
		return
	}
	jsonutil.OK(w, listquery.NewPage(items, p, total))
}

// Get handles GET /api/media/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	m, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.deps.Fail(w, r, err, "Media")
		return
	}
	jsonutil.OK(w, m)
}

// Delete handles DELETE /api/media/{id}. The record and its audit entry are
// committed first; a failure to remove the stored object is only logged.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	var removed *models.Media
	ops := entityapi.Ops[models.Media]{
		EntityType: audit.EntityMedia,
		Get: func(ctx context.Context, id primitive.ObjectID) (*models.Media, error) {
			m, err := h.store.GetByID(ctx, id)
			removed = m
			return m, err
		},
		Delete:   h.store.Delete,
		Snapshot: snapshot,
	}
	if err := entityapi.DeleteOne(r.Context(), h.deps, r, ops, id); err != nil {
		h.deps.Fail(w, r, err, "Media")
		return
	}
	if err := h.files.Delete(r.Context(), removed.StoragePath); err != nil {
		h.deps.Log.Warn("failed to delete media object",
			zap.String("path", removed.StoragePath), zap.Error(err))
	}
	jsonutil.Message(w, "Media deleted successfully")
}
