// Package content serves the editable page/section/key values of the public
// site. Items are written by natural key; the stored type decides which
// values are accepted.
package content

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	contentstore "github.com/dalemusser/tourdesk/internal/app/store/content"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/authz"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tourdesk/internal/app/system/inputval"
	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultLimit   = 50
	maxTextLen     = 10000
	maxRichTextLen = 100000
)

type Handler struct {
	deps  *entityapi.Deps
	store *contentstore.Store
}

func NewHandler(deps *entityapi.Deps, store *contentstore.Store) *Handler {
	return &Handler{deps: deps, store: store}
}

type itemInput struct {
	Page    string `json:"page" validate:"required,contentkey"`
	Section string `json:"section" validate:"required,contentkey"`
	Key     string `json:"key" validate:"required,contentkey"`
	Type    string `json:"type" validate:"required,oneof=TEXT RICHTEXT IMAGE JSON NUMBER BOOLEAN"`
	Value   any    `json:"value"`
}

type bulkInput struct {
	Items []itemInput `json:"items" validate:"required,min=1,max=100,dive"`
}

// BulkResult reports a bulk upsert.
type BulkResult struct {
	Created int                  `json:"created"`
	Updated int                  `json:"updated"`
	Items   []models.ContentItem `json:"items"`
}

// coerce checks value against typ and returns what is stored.
func coerce(typ string, value any) (any, error) {
	switch typ {
	case models.ContentText, models.ContentRichText, models.ContentImage:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("value must be a string for type %s", typ)
		}
		switch typ {
		case models.ContentText:
			if len(s) > maxTextLen {
				return nil, fmt.Errorf("value must be at most %d characters", maxTextLen)
			}
		case models.ContentRichText:
			if len(s) > maxRichTextLen {
				return nil, fmt.Errorf("value must be at most %d characters", maxRichTextLen)
			}
			return htmlsanitize.RichText(s), nil
		case models.ContentImage:
			if !inputval.IsValidHTTPURL(s) {
				return nil, fmt.Errorf("value must be an http(s) URL for type IMAGE")
			}
		}
		return s, nil
	case models.ContentNumber:
		n, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("value must be a number for type NUMBER")
		}
		return n, nil
	case models.ContentBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("value must be a boolean for type BOOLEAN")
		}
		return b, nil
	case models.ContentJSON:
		switch value.(type) {
		case map[string]any, []any:
			return value, nil
		}
		return nil, fmt.Errorf("value must be an object or array for type JSON")
	}
	return nil, fmt.Errorf("unknown type %q", typ)
}

// checkItems coerces every item value in place. Failures are reported at
// the path returned by prefix, e.g. "items[2].value".
func checkItems(items []itemInput, prefix func(i int) string) inputval.Errors {
	var errs inputval.Errors
	for i := range items {
		v, err := coerce(items[i].Type, items[i].Value)
		if err != nil {
			errs.Add(prefix(i), err.Error())
			continue
		}
		items[i].Value = v
	}
	return errs
}

func snapshot(it *models.ContentItem) map[string]any {
	if it == nil {
		return map[string]any{}
	}
	return map[string]any{
		"page":    it.Page,
		"section": it.Section,
		"key":     it.Key,
		"type":    it.Type,
		"value":   it.Value,
	}
}

// upsert writes one item and returns the audit entry for action, using
// CREATE in place of action when the item is new.
func (h *Handler) upsert(ctx context.Context, in itemInput, actor primitive.ObjectID, action string) (*contentstore.UpsertResult, auditlog.Entry, error) {
	var by *primitive.ObjectID
	if !actor.IsZero() {
		by = &actor
	}
	res, err := h.store.Upsert(ctx, in.Page, in.Section, in.Key, in.Type, in.Value, by)
	if err != nil {
		return nil, auditlog.Entry{}, err
	}
	e := auditlog.Entry{
		ActorID:    actor,
		Action:     action,
		EntityType: audit.EntityContent,
		EntityID:   res.Item.ID,
	}
	if res.Created() {
		e.Action = audit.ActionCreate
		e.NewValues = snapshot(res.Item)
	} else {
		e.OldValues, e.NewValues = auditlog.Changes(snapshot(res.Previous), snapshot(res.Item))
	}
	return &res, e, nil
}

// Public handles GET /api/content/public/{page}: section -> key -> value.
func (h *Handler) Public(w http.ResponseWriter, r *http.Request) {
	page := strings.ToLower(chi.URLParam(r, "page"))
	items, err := h.store.ForPage(r.Context(), page)
	if err != nil {
		h.deps.Fail(w, r, err, "Content")
		return
	}
	jsonutil.OK(w, contentstore.Grouped(items))
}

// List handles GET /api/content (filters page, section).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit})
	if !ok {
		return
	}
	items, total, err := h.store.List(r.Context(), query.Get(r, "page"), query.Get(r, "section"), p.Page, p.Limit)
	if err != nil {
		h.deps.Fail(w, r, err, "Content")
		return
	}
	jsonutil.OK(w, listquery.NewPage(items, p, total))
}

// Upsert handles PUT /api/content. It responds 201 when the item is new.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var in itemInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	items := []itemInput{in}
	if errs := checkItems(items, func(int) string { return "value" }); errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}

	var res *contentstore.UpsertResult
	err := h.deps.Commit(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
		var e auditlog.Entry
		var err error
		res, e, err = h.upsert(ctx, items[0], authz.ActorID(r), audit.ActionUpdate)
		return e, err
	})
	if err != nil {
		h.deps.Fail(w, r, err, "Content")
		return
	}
	if res.Created() {
		jsonutil.Created(w, res.Item)
		return
	}
	jsonutil.OK(w, res.Item)
}

// Bulk handles PUT /api/content/bulk. Every item is validated before any is
// written; each write is audited as BULK_UPDATE, or CREATE when new.
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	var in bulkInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	prefix := func(i int) string { return fmt.Sprintf("items[%d].value", i) }
	if errs := checkItems(in.Items, prefix); errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}

	actor := authz.ActorID(r)
	out := BulkResult{Items: make([]models.ContentItem, 0, len(in.Items))}
	for _, item := range in.Items {
		var res *contentstore.UpsertResult
		err := h.deps.Commit(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
			var e auditlog.Entry
			var err error
			res, e, err = h.upsert(ctx, item, actor, audit.ActionBulkUpdate)
			return e, err
		})
		if err != nil {
			h.deps.Fail(w, r, err, "Content")
			return
		}
		if res.Created() {
			out.Created++
		} else {
			out.Updated++
		}
		out.Items = append(out.Items, *res.Item)
	}
	jsonutil.OK(w, out)
}

func (h *Handler) ops() entityapi.Ops[models.ContentItem] {
	return entityapi.Ops[models.ContentItem]{
		EntityType: audit.EntityContent,
		Get:        h.store.GetByID,
		Delete:     h.store.Delete,
		Snapshot:   snapshot,
	}
}

// Delete handles DELETE /api/content/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	if err := entityapi.DeleteOne(r.Context(), h.deps, r, h.ops(), id); err != nil {
		h.deps.Fail(w, r, err, "Content")
		return
	}
	jsonutil.Message(w, "Content deleted successfully")
}
