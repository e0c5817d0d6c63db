// Package tours serves the tour catalogue: public listing and detail pages
// by slug, and the audited back-office CRUD.
package tours

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	"github.com/dalemusser/tourdesk/internal/app/store/sluggable"
	tourstore "github.com/dalemusser/tourdesk/internal/app/store/tours"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/authz"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/app/system/slug"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultLimit    = 12
	featuredLimit   = 6
	defaultCurrency = "KZT"
)

// Handler serves /api/tours.
type Handler struct {
	deps  *entityapi.Deps
	store *tourstore.Store
	now   func() time.Time
}

func NewHandler(deps *entityapi.Deps, store *tourstore.Store) *Handler {
	return &Handler{deps: deps, store: store, now: time.Now}
}

// TourView is a tour joined with its creator.
type TourView struct {
	models.Tour
	CreatedBy *models.UserRef `json:"createdBy"`
}

type createInput struct {
	Title            string   `json:"title" validate:"required,notblank,min=3,max=200"`
	Description      string   `json:"description" validate:"max=20000"`
	ShortDescription string   `json:"shortDescription" validate:"max=500"`
	Category         string   `json:"category" validate:"required,notblank,max=100"`
	Destination      string   `json:"destination" validate:"max=150"`
	Image            string   `json:"image" validate:"required,httpurl"`
	Gallery          []string `json:"gallery" validate:"max=30,dive,httpurl"`
	Price            float64  `json:"price" validate:"gte=0"`
	Currency         string   `json:"currency" validate:"omitempty,len=3,alpha"`
	DurationDays     int      `json:"durationDays" validate:"gte=0,lte=365"`
	Difficulty       string   `json:"difficulty" validate:"omitempty,oneof=EASY MODERATE CHALLENGING"`
	MaxGroupSize     int      `json:"maxGroupSize" validate:"gte=0,lte=1000"`
	Highlights       []string `json:"highlights" validate:"max=50,dive,max=300"`
	Included         []string `json:"included" validate:"max=50,dive,max=300"`
	Status           string   `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Featured         bool     `json:"featured"`
}

type updateInput struct {
	Title            *string   `json:"title" validate:"omitempty,notblank,min=3,max=200"`
	Description      *string   `json:"description" validate:"omitempty,max=20000"`
	ShortDescription *string   `json:"shortDescription" validate:"omitempty,max=500"`
	Category         *string   `json:"category" validate:"omitempty,notblank,max=100"`
	Destination      *string   `json:"destination" validate:"omitempty,max=150"`
	Image            *string   `json:"image" validate:"omitempty,httpurl"`
	Gallery          *[]string `json:"gallery" validate:"omitempty,max=30,dive,httpurl"`
	Price            *float64  `json:"price" validate:"omitempty,gte=0"`
	Currency         *string   `json:"currency" validate:"omitempty,len=3,alpha"`
	DurationDays     *int      `json:"durationDays" validate:"omitempty,gte=0,lte=365"`
	Difficulty       *string   `json:"difficulty" validate:"omitempty,oneof=EASY MODERATE CHALLENGING"`
	MaxGroupSize     *int      `json:"maxGroupSize" validate:"omitempty,gte=0,lte=1000"`
	Highlights       *[]string `json:"highlights" validate:"omitempty,max=50,dive,max=300"`
	Included         *[]string `json:"included" validate:"omitempty,max=50,dive,max=300"`
	Status           *string   `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Featured         *bool     `json:"featured"`
}

// snapshot lists the audited fields of a tour.
func snapshot(t *models.Tour) map[string]any {
	return map[string]any{
		"title":       t.Title,
		"slug":        t.Slug,
		"status":      t.Status,
		"featured":    t.Featured,
		"category":    t.Category,
		"price":       t.Price,
		"description": t.Description,
		"publishedAt": entityapi.TimeValue(t.PublishedAt),
	}
}

func (h *Handler) ops() entityapi.Ops[models.Tour] {
	return entityapi.Ops[models.Tour]{
		EntityType: audit.EntityTour,
		Get:        h.store.GetByID,
		Update:     h.store.UpdateFields,
		Delete:     h.store.Delete,
		Snapshot:   snapshot,
		Prepare: func(t *models.Tour, set bson.M) bson.M {
			if status, ok := set["status"].(string); ok && t.PublishedAt == nil {
				if pa := entityapi.PublishedAt(status, nil, h.now()); pa != nil {
					set["published_at"] = pa
				}
			}
			return set
		},
	}
}

func (h *Handler) views(ctx context.Context, tours []models.Tour) []TourView {
	ids := make([]primitive.ObjectID, len(tours))
	for i, t := range tours {
		ids[i] = t.CreatedByID
	}
	refs := h.deps.Refs(ctx, ids...)
	out := make([]TourView, len(tours))
	for i, t := range tours {
		out[i] = TourView{Tour: t, CreatedBy: refs[t.CreatedByID]}
	}
	return out
}

func (h *Handler) view(ctx context.Context, t *models.Tour) TourView {
	return h.views(ctx, []models.Tour{*t})[0]
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, p listquery.Params, f sluggable.Filter) {
	f.Search = p.Search
	f.SearchFields = tourstore.SearchFields
	f.Featured = p.Featured
	f.Equals = map[string]string{
		"category":    p.Category,
		"destination": query.Get(r, "destination"),
		"difficulty":  strings.ToUpper(query.Get(r, "difficulty")),
	}
	items, total, err := h.store.List(r.Context(), f.BSON(), tourstore.Sort, p.Page, p.Limit)
	if err != nil {
		h.deps.Fail(w, r, err, "Tour")
		return
	}
	jsonutil.OK(w, listquery.NewPage(h.views(r.Context(), items), p, total))
}

// ListPublic handles GET /api/tours/public.
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit})
	if !ok {
		return
	}
	h.list(w, r, p, sluggable.Filter{Status: models.StatusPublished})
}

// Featured handles GET /api/tours/public/featured.
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: featuredLimit})
	if !ok {
		return
	}
	yes := true
	p.Featured = &yes
	h.list(w, r, p, sluggable.Filter{Status: models.StatusPublished})
}

// GetPublic handles GET /api/tours/public/{slug} and counts the view.
func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.ViewBySlug(r.Context(), chi.URLParam(r, "slug"), bson.M{"status": models.StatusPublished})
	if err != nil {
		h.deps.Fail(w, r, err, "Tour")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), t))
}

// List handles GET /api/tours for the back office; every status is visible.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit, Statuses: models.PublicationStatuses()})
	if !ok {
		return
	}
	h.list(w, r, p, sluggable.Filter{Status: p.Status})
}

// Stats handles GET /api/tours/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context(), tourstore.StatsOptions)
	if err != nil {
		h.deps.Fail(w, r, err, "Tour")
		return
	}
	jsonutil.OK(w, st)
}

// Get handles GET /api/tours/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	t, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.deps.Fail(w, r, err, "Tour")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), t))
}

// Create handles POST /api/tours.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in createInput
	if !entityapi.Decode(w, r, &in) {
		return
	}

	now := h.now().UTC()
	t := models.Tour{
		ID:               primitive.NewObjectID(),
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		ShortDescription: in.ShortDescription,
		Category:         strings.TrimSpace(in.Category),
		Destination:      strings.TrimSpace(in.Destination),
		Image:            in.Image,
		Gallery:          in.Gallery,
		Price:            in.Price,
		Currency:         strings.ToUpper(in.Currency),
		DurationDays:     in.DurationDays,
		Difficulty:       in.Difficulty,
		MaxGroupSize:     in.MaxGroupSize,
		Highlights:       in.Highlights,
		Included:         in.Included,
		Status:           in.Status,
		Featured:         in.Featured,
		CreatedByID:      authz.ActorID(r),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if t.Currency == "" {
		t.Currency = defaultCurrency
	}
	if t.Status == "" {
		t.Status = models.StatusDraft
	}
	t.PublishedAt = entityapi.PublishedAt(t.Status, nil, now)

	err := h.deps.CommitSlugged(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
		s, err := h.store.ResolveSlug(ctx, t.Title, nil)
		if err != nil {
			return auditlog.Entry{}, err
		}
		t.Slug = s
		if err := h.store.Insert(ctx, &t); err != nil {
			return auditlog.Entry{}, err
		}
		return auditlog.Entry{
			ActorID:    t.CreatedByID,
			Action:     audit.ActionCreate,
			EntityType: audit.EntityTour,
			EntityID:   t.ID,
			NewValues:  snapshot(&t),
		}, nil
	})
	if err != nil {
		h.deps.Fail(w, r, err, "Tour")
		return
	}
	jsonutil.Created(w, h.view(r.Context(), &t))
}

func (in updateInput) set() bson.M {
	set := bson.M{}
	if in.Title != nil {
		set["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.ShortDescription != nil {
		set["short_description"] = *in.ShortDescription
	}
	if in.Category != nil {
		set["category"] = strings.TrimSpace(*in.Category)
	}
	if in.Destination != nil {
		set["destination"] = strings.TrimSpace(*in.Destination)
	}
	if in.Image != nil {
		set["image"] = *in.Image
	}
	if in.Gallery != nil {
		set["gallery"] = *in.Gallery
	}
	if in.Price != nil {
		set["price"] = *in.Price
	}
	if in.Currency != nil {
		set["currency"] = strings.ToUpper(*in.Currency)
	}
	if in.DurationDays != nil {
		set["duration_days"] = *in.DurationDays
	}
	if in.Difficulty != nil {
		set["difficulty"] = *in.Difficulty
	}
	if in.MaxGroupSize != nil {
		set["max_group_size"] = *in.MaxGroupSize
	}
	if in.Highlights != nil {
		set["highlights"] = *in.Highlights
	}
	if in.Included != nil {
		set["included"] = *in.Included
	}
	if in.Status != nil {
		set["status"] = *in.Status
	}
	if in.Featured != nil {
		set["featured"] = *in.Featured
	}
	return set
}

// Update handles PUT /api/tours/{id}. Only supplied fields change; the slug
// is re-derived only when the title changes.
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
		h.deps.Fail(w, r, err, "Tour")
		return
	}

	set := in.set()
	status := existing.Status
	if in.Status != nil {
		status = *in.Status
	}
	if existing.PublishedAt == nil {
		if pa := entityapi.PublishedAt(status, nil, h.now()); pa != nil {
			set["published_at"] = pa
		}
	}
	regenerate := slug.NeedsRegeneration(in.Title, existing.Title)

	var updated *models.Tour
	write := func(ctx context.Context) (auditlog.Entry, error) {
		if regenerate {
			s, err := h.store.ResolveSlug(ctx, *in.Title, &id)
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
			EntityType: audit.EntityTour,
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
		h.deps.Fail(w, r, err, "Tour")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), updated))
}

// Delete handles DELETE /api/tours/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	if err := entityapi.DeleteOne(r.Context(), h.deps, r, h.ops(), id); err != nil {
		h.deps.Fail(w, r, err, "Tour")
		return
	}
	jsonutil.Message(w, "Tour deleted successfully")
}

// Bulk handles PUT /api/tours/bulk, auditing each tour changed.
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	var in entityapi.BulkInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	set, ids, errs := in.Check(models.PublicationStatuses())
	if errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}
	res, err := entityapi.BulkUpdate(r.Context(), h.deps, r, h.ops(), ids, set)
	if err != nil {
		h.deps.Fail(w, r, err, "Tour")
		return
	}
	jsonutil.OK(w, res)
}
