// Package destinations serves the places tours visit.
package destinations

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	destinationstore "github.com/dalemusser/tourdesk/internal/app/store/destinations"
	"github.com/dalemusser/tourdesk/internal/app/store/sluggable"
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
	defaultLimit  = 12
	featuredLimit = 6
)

type Handler struct {
	deps  *entityapi.Deps
	store *destinationstore.Store
	now   func() time.Time
}

func NewHandler(deps *entityapi.Deps, store *destinationstore.Store) *Handler {
	return &Handler{deps: deps, store: store, now: time.Now}
}

// DestinationView is a destination joined with its creator.
type DestinationView struct {
	models.Destination
	CreatedBy *models.UserRef `json:"createdBy"`
}

type createInput struct {
	Name        string   `json:"name" validate:"required,notblank,min=2,max=150"`
	Description string   `json:"description" validate:"max=20000"`
	Region      string   `json:"region" validate:"max=100"`
	Image       string   `json:"image" validate:"omitempty,httpurl"`
	Gallery     []string `json:"gallery" validate:"max=30,dive,httpurl"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
	Status      string   `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Featured    bool     `json:"featured"`
}

type updateInput struct {
	Name        *string   `json:"name" validate:"omitempty,notblank,min=2,max=150"`
	Description *string   `json:"description" validate:"omitempty,max=20000"`
	Region      *string   `json:"region" validate:"omitempty,max=100"`
	Image       *string   `json:"image" validate:"omitempty,httpurl"`
	Gallery     *[]string `json:"gallery" validate:"omitempty,max=30,dive,httpurl"`
	Latitude    *float64  `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64  `json:"longitude" validate:"omitempty,longitude"`
	Status      *string   `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Featured    *bool     `json:"featured"`
}

func snapshot(d *models.Destination) map[string]any {
	return map[string]any{
		"name":        d.Name,
		"slug":        d.Slug,
		"status":      d.Status,
		"featured":    d.Featured,
		"region":      d.Region,
		"description": d.Description,
	}
}

func (h *Handler) ops() entityapi.Ops[models.Destination] {
	return entityapi.Ops[models.Destination]{
		EntityType: audit.EntityDestination,
		Get:        h.store.GetByID,
		Update:     h.store.UpdateFields,
		Delete:     h.store.Delete,
		Snapshot:   snapshot,
	}
}

func (h *Handler) views(ctx context.Context, dests []models.Destination) []DestinationView {
	ids := make([]primitive.ObjectID, len(dests))
	for i, d := range dests {
		ids[i] = d.CreatedByID
	}
	refs := h.deps.Refs(ctx, ids...)
	out := make([]DestinationView, len(dests))
	for i, d := range dests {
		out[i] = DestinationView{Destination: d, CreatedBy: refs[d.CreatedByID]}
	}
	return out
}

func (h *Handler) view(ctx context.Context, d *models.Destination) DestinationView {
	return h.views(ctx, []models.Destination{*d})[0]
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, p listquery.Params, f sluggable.Filter) {
	f.Search = p.Search
	f.SearchFields = destinationstore.SearchFields
	f.Featured = p.Featured
	f.Equals = map[string]string{destinationstore.RegionField: query.Get(r, "region")}
	items, total, err := h.store.List(r.Context(), f.BSON(), destinationstore.Sort, p.Page, p.Limit)
	if err != nil {
		h.deps.Fail(w, r, err, "Destination")
		return
	}
	jsonutil.OK(w, listquery.NewPage(h.views(r.Context(), items), p, total))
}

// ListPublic handles GET /api/destinations/public (search, region, featured).
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit})
	if !ok {
		return
	}
	h.list(w, r, p, sluggable.Filter{Status: models.StatusActive})
}

// Featured handles GET /api/destinations/public/featured.
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: featuredLimit})
	if !ok {
		return
	}
	yes := true
	p.Featured = &yes
	h.list(w, r, p, sluggable.Filter{Status: models.StatusActive})
}

// GetPublic handles GET /api/destinations/public/{slug} and counts the view.
func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.ViewBySlug(r.Context(), chi.URLParam(r, "slug"), bson.M{"status": models.StatusActive})
	if err != nil {
		h.deps.Fail(w, r, err, "Destination")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), d))
}

// List handles GET /api/destinations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit, Statuses: models.ActivationStatuses()})
	if !ok {
		return
	}
	h.list(w, r, p, sluggable.Filter{Status: p.Status})
}

// Stats handles GET /api/destinations/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context(), destinationstore.StatsOptions)
	if err != nil {
		h.deps.Fail(w, r, err, "Destination")
		return
	}
	jsonutil.OK(w, st)
}

// Get handles GET /api/destinations/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	d, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.deps.Fail(w, r, err, "Destination")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), d))
}

// Create handles POST /api/destinations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in createInput
	if !entityapi.Decode(w, r, &in) {
		return
	}

	now := h.now().UTC()
	d := models.Destination{
		ID:          primitive.NewObjectID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Region:      strings.TrimSpace(in.Region),
		Image:       in.Image,
		Gallery:     in.Gallery,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Status:      in.Status,
		Featured:    in.Featured,
		CreatedByID: authz.ActorID(r),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if d.Status == "" {
		d.Status = models.StatusActive
	}

	err := h.deps.CommitSlugged(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
		s, err := h.store.ResolveSlug(ctx, d.Name, nil)
		if err != nil {
			return auditlog.Entry{}, err
		}
		d.Slug = s
		if err := h.store.Insert(ctx, &d); err != nil {
			return auditlog.Entry{}, err
		}
		return auditlog.Entry{
			ActorID:    d.CreatedByID,
			Action:     audit.ActionCreate,
			EntityType: audit.EntityDestination,
			EntityID:   d.ID,
			NewValues:  snapshot(&d),
		}, nil
	})
	if err != nil {
		h.deps.Fail(w, r, err, "Destination")
		return
	}
	jsonutil.Created(w, h.view(r.Context(), &d))
}

func (in updateInput) set() bson.M {
	set := bson.M{}
	if in.Name != nil {
		set["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.Region != nil {
		set["region"] = strings.TrimSpace(*in.Region)
	}
	if in.Image != nil {
		set["image"] = *in.Image
	}
	if in.Gallery != nil {
		set["gallery"] = *in.Gallery
	}
	if in.Latitude != nil {
		set["latitude"] = *in.Latitude
	}
	if in.Longitude != nil {
		set["longitude"] = *in.Longitude
	}
	if in.Status != nil {
		set["status"] = *in.Status
	}
	if in.Featured != nil {
		set["featured"] = *in.Featured
	}
	return set
}

// Update handles PUT /api/destinations/{id}.
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
		h.deps.Fail(w, r, err, "Destination")
		return
	}

	set := in.set()
	regenerate := slug.NeedsRegeneration(in.Name, existing.Name)

	var updated *models.Destination
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
			EntityType: audit.EntityDestination,
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
		h.deps.Fail(w, r, err, "Destination")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), updated))
}

// Delete handles DELETE /api/destinations/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	if err := entityapi.DeleteOne(r.Context(), h.deps, r, h.ops(), id); err != nil {
		h.deps.Fail(w, r, err, "Destination")
		return
	}
	jsonutil.Message(w, "Destination deleted successfully")
}

// Bulk handles PUT /api/destinations/bulk.
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
		h.deps.Fail(w, r, err, "Destination")
		return
	}
	jsonutil.OK(w, res)
}
