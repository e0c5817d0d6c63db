// Package categories serves tour categories: the public navigation list and
// the audited back-office CRUD, including manual ordering.
package categories

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	categorystore "github.com/dalemusser/tourdesk/internal/app/store/categories"
	"github.com/dalemusser/tourdesk/internal/app/store/sluggable"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/authz"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/app/system/slug"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultLimit  = 20
	featuredLimit = 6
)

type Handler struct {
	deps  *entityapi.Deps
	store *categorystore.Store
	now   func() time.Time
}

func NewHandler(deps *entityapi.Deps, store *categorystore.Store) *Handler {
	return &Handler{deps: deps, store: store, now: time.Now}
}

// CategoryView is a category joined with its creator.
type CategoryView struct {
	models.Category
	CreatedBy *models.UserRef `json:"createdBy"`
}

type createInput struct {
	Name         string `json:"name" validate:"required,notblank,min=2,max=100"`
	Description  string `json:"description" validate:"max=2000"`
	Image        string `json:"image" validate:"omitempty,httpurl"`
	Icon         string `json:"icon" validate:"max=100"`
	Status       string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Featured     bool   `json:"featured"`
	DisplayOrder *int   `json:"displayOrder" validate:"omitempty,gte=0"`
}

type updateInput struct {
	Name         *string `json:"name" validate:"omitempty,notblank,min=2,max=100"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	Image        *string `json:"image" validate:"omitempty,httpurl"`
	Icon         *string `json:"icon" validate:"omitempty,max=100"`
	Status       *string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Featured     *bool   `json:"featured"`
	DisplayOrder *int    `json:"displayOrder" validate:"omitempty,gte=0"`
}

type reorderInput struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,objectid"`
}

func snapshot(c *models.Category) map[string]any {
	return map[string]any{
		"name":         c.Name,
		"slug":         c.Slug,
		"status":       c.Status,
		"featured":     c.Featured,
		"displayOrder": c.DisplayOrder,
		"description":  c.Description,
	}
}

func (h *Handler) ops() entityapi.Ops[models.Category] {
	return entityapi.Ops[models.Category]{
		EntityType: audit.EntityCategory,
		Get:        h.store.GetByID,
		Update:     h.store.UpdateFields,
		Delete:     h.store.Delete,
		Snapshot:   snapshot,
	}
}

func (h *Handler) views(ctx context.Context, cats []models.Category) []CategoryView {
	ids := make([]primitive.ObjectID, len(cats))
	for i, c := range cats {
		ids[i] = c.CreatedByID
	}
	refs := h.deps.Refs(ctx, ids...)
	out := make([]CategoryView, len(cats))
	for i, c := range cats {
		out[i] = CategoryView{Category: c, CreatedBy: refs[c.CreatedByID]}
	}
	return out
}

func (h *Handler) view(ctx context.Context, c *models.Category) CategoryView {
	return h.views(ctx, []models.Category{*c})[0]
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, p listquery.Params, f sluggable.Filter) {
	f.Search = p.Search
	f.SearchFields = categorystore.SearchFields
	f.Featured = p.Featured
	items, total, err := h.store.List(r.Context(), f.BSON(), categorystore.Sort, p.Page, p.Limit)
	if err != nil {
		h.deps.Fail(w, r, err, "Category")
		return
	}
	jsonutil.OK(w, listquery.NewPage(h.views(r.Context(), items), p, total))
}

// ListPublic handles GET /api/categories/public. Only ACTIVE categories.
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit})
	if !ok {
		return
	}
	h.list(w, r, p, sluggable.Filter{Status: models.StatusActive})
}

// Featured handles GET /api/categories/public/featured.
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: featuredLimit})
	if !ok {
		return
	}
	yes := true
	p.Featured = &yes
	h.list(w, r, p, sluggable.Filter{Status: models.StatusActive})
}

// GetPublic handles GET /api/categories/public/{slug}.
func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetBySlug(r.Context(), chi.URLParam(r, "slug"), bson.M{"status": models.StatusActive})
	if err != nil {
		h.deps.Fail(w, r, err, "Category")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), c))
}

// List handles GET /api/categories.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit, Statuses: models.ActivationStatuses()})
	if !ok {
		return
	}
	h.list(w, r, p, sluggable.Filter{Status: p.Status})
}

// Stats handles GET /api/categories/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context(), categorystore.StatsOptions)
	if err != nil {
		h.deps.Fail(w, r, err, "Category")
		return
	}
	jsonutil.OK(w, st)
}

// Get handles GET /api/categories/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	c, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.deps.Fail(w, r, err, "Category")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), c))
}

// Create handles POST /api/categories. Without an explicit displayOrder the
// category sorts last.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in createInput
	if !entityapi.Decode(w, r, &in) {
		return
	}

	now := h.now().UTC()
	c := models.Category{
		ID:          primitive.NewObjectID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Image:       in.Image,
		Icon:        in.Icon,
		Status:      in.Status,
		Featured:    in.Featured,
		CreatedByID: authz.ActorID(r),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.Status == "" {
		c.Status = models.StatusActive
	}

	err := h.deps.CommitSlugged(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
		if in.DisplayOrder != nil {
			c.DisplayOrder = *in.DisplayOrder
		} else {
			next, err := h.store.NextDisplayOrder(ctx)
			if err != nil {
				return auditlog.Entry{}, err
			}
			c.DisplayOrder = next
		}
		s, err := h.store.ResolveSlug(ctx, c.Name, nil)
		if err != nil {
			return auditlog.Entry{}, err
		}
		c.Slug = s
		if err := h.store.Insert(ctx, &c); err != nil {
			return auditlog.Entry{}, err
		}
		return auditlog.Entry{
			ActorID:    c.CreatedByID,
			Action:     audit.ActionCreate,
			EntityType: audit.EntityCategory,
			EntityID:   c.ID,
			NewValues:  snapshot(&c),
		}, nil
	})
	if err != nil {
		h.deps.Fail(w, r, err, "Category")
		return
	}
	jsonutil.Created(w, h.view(r.Context(), &c))
}

func (in updateInput) set() bson.M {
	set := bson.M{}
	if in.Name != nil {
		set["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.Image != nil {
		set["image"] = *in.Image
	}
	if in.Icon != nil {
		set["icon"] = *in.Icon
	}
	if in.Status != nil {
		set["status"] = *in.Status
	}
	if in.Featured != nil {
		set["featured"] = *in.Featured
	}
	if in.DisplayOrder != nil {
		set["display_order"] = *in.DisplayOrder
	}
	return set
}

// Update handles PUT /api/categories/{id}. The slug follows the name.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	var in updateInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.deps.Fail(w, r, err, "Category")
		return
	}

	set := in.set()
	regenerate := slug.NeedsRegeneration(in.Name, existing.Name)

	var updated *models.Category
	write := func(ctx context.Context) (auditlog.Entry, error) {
		if regenerate {
			s, err := h.store.ResolveSlug(ctx, *in.Name, &id)
			if err != nil {
				return auditlog.Entry{}, err
			}
			set["slug"] = s
		}
		var err error
		if updated, err = h.store.UpdateFields(ctx, id, set); err != nil {
			return auditlog.Entry{}, err
		}
		oldV, newV := auditlog.Changes(snapshot(existing), snapshot(updated))
		return auditlog.Entry{
			ActorID:    authz.ActorID(r),
			Action:     audit.ActionUpdate,
			EntityType: audit.EntityCategory,
			EntityID:   id,
			OldValues:  oldV,
			NewValues:  newV,
		}, nil
	}
	if regenerate {
		err = h.deps.CommitSlugged(r.Context(), r, write)
	} else {
		err = h.deps.Commit(r.Context(), r, write)
	}
	if err != nil {
		h.deps.Fail(w, r, err, "Category")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), updated))
}

// Delete handles DELETE /api/categories/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	if err := entityapi.DeleteOne(r.Context(), h.deps, r, h.ops(), id); err != nil {
		h.deps.Fail(w, r, err, "Category")
		return
	}
	jsonutil.Message(w, "Category deleted successfully")
}

// Bulk handles PUT /api/categories/bulk.
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	var in entityapi.BulkInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	set, ids, errs := in.Check(models.ActivationStatuses())
	if errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}
	res, err := entityapi.BulkUpdate(r.Context(), h.deps, r, h.ops(), ids, set)
	if err != nil {
		h.deps.Fail(w, r, err, "Category")
		return
	}
	jsonutil.OK(w, res)
}

var (
	errUnknownCategory = errors.New("unknown category")
	errSameOrder       = errors.New("display order unchanged")
)

// Reorder handles PUT /api/categories/reorder. Each id takes its index in
// the list as its display order; categories not listed keep theirs, and
// categories already at their index are not audited.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	var in reorderInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	actor := authz.ActorID(r)
	res := entityapi.BulkResult{NotFound: []string{}, Unchanged: []string{}}
	for pos, raw := range in.IDs {
		id, _ := primitive.ObjectIDFromHex(raw)
		err := h.deps.Commit(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
			prev, found, err := h.store.SetDisplayOrder(ctx, id, pos)
			if err != nil {
				return auditlog.Entry{}, err
			}
			if !found {
				return auditlog.Entry{}, errUnknownCategory
			}
			if prev == pos {
				return auditlog.Entry{}, errSameOrder
			}
			return auditlog.Entry{
				ActorID:    actor,
				Action:     audit.ActionBulkUpdate,
				EntityType: audit.EntityCategory,
				EntityID:   id,
				OldValues:  map[string]any{"displayOrder": prev},
				NewValues:  map[string]any{"displayOrder": pos},
			}, nil
		})
		switch {
		case errors.Is(err, errUnknownCategory):
			res.NotFound = append(res.NotFound, raw)
		case errors.Is(err, errSameOrder):
			res.Unchanged = append(res.Unchanged, raw)
		case err != nil:
			h.deps.Fail(w, r, err, "Category")
			return
		default:
			res.Updated++
		}
	}
	jsonutil.OK(w, res)
}
