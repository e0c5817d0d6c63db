// Package events serves dated happenings. Events are addressed by id and
// audited like the slugged entities.
package events

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	eventstore "github.com/dalemusser/tourdesk/internal/app/store/events"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/authz"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/inputval"
	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultLimit  = 10
	featuredLimit = 6
)

type Handler struct {
	deps  *entityapi.Deps
	store *eventstore.Store
	now   func() time.Time
}

func NewHandler(deps *entityapi.Deps, store *eventstore.Store) *Handler {
	return &Handler{deps: deps, store: store, now: time.Now}
}

// EventView is an event joined with its creator.
type EventView struct {
	models.Event
	CreatedBy *models.UserRef `json:"createdBy"`
}

type createInput struct {
	Title       string     `json:"title" validate:"required,notblank,min=3,max=200"`
	Description string     `json:"description" validate:"max=20000"`
	Location    string     `json:"location" validate:"max=200"`
	StartDate   *time.Time `json:"startDate" validate:"required"`
	EndDate     *time.Time `json:"endDate"`
	Image       string     `json:"image" validate:"omitempty,httpurl"`
	Status      string     `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Featured    bool       `json:"featured"`
}

type updateInput struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,min=3,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=20000"`
	Location    *string    `json:"location" validate:"omitempty,max=200"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Image       *string    `json:"image" validate:"omitempty,httpurl"`
	Status      *string    `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Featured    *bool      `json:"featured"`
}

// checkDates rejects an end before the start.
func checkDates(start time.Time, end *time.Time) inputval.Errors {
	var errs inputval.Errors
	if end != nil && end.Before(start) {
		errs.Add("endDate", "endDate must not be before startDate")
	}
	return errs
}

func snapshot(e *models.Event) map[string]any {
	return map[string]any{
		"title":     e.Title,
		"status":    e.Status,
		"featured":  e.Featured,
		"location":  e.Location,
		"startDate": entityapi.TimeValue(&e.StartDate),
		"endDate":   entityapi.TimeValue(e.EndDate),
	}
}

func (h *Handler) ops() entityapi.Ops[models.Event] {
	return entityapi.Ops[models.Event]{
		EntityType: audit.EntityEvent,
		Get:        h.store.GetByID,
		Update:     h.store.UpdateFields,
		Delete:     h.store.Delete,
		Snapshot:   snapshot,
	}
}

func (h *Handler) views(ctx context.Context, evs []models.Event) []EventView {
	ids := make([]primitive.ObjectID, len(evs))
	for i, e := range evs {
		ids[i] = e.CreatedByID
	}
	refs := h.deps.Refs(ctx, ids...)
	out := make([]EventView, len(evs))
	for i, e := range evs {
		out[i] = EventView{Event: e, CreatedBy: refs[e.CreatedByID]}
	}
	return out
}

func (h *Handler) view(ctx context.Context, e *models.Event) EventView {
	return h.views(ctx, []models.Event{*e})[0]
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, p listquery.Params, status string) {
	f := eventstore.Filter{Status: status, Featured: p.Featured, Search: p.Search}
	if query.Get(r, "upcoming") == "true" {
		now := h.now().UTC()
		f.Upcoming = &now
	}
	items, total, err := h.store.List(r.Context(), f, p.Page, p.Limit)
	if err != nil {
		h.deps.Fail(w, r, err, "Event")
		return
	}
	jsonutil.OK(w, listquery.NewPage(h.views(r.Context(), items), p, total))
}

// ListPublic handles GET /api/events/public (search, featured, upcoming).
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit})
	if !ok {
		return
	}
	h.list(w, r, p, models.StatusPublished)
}

// Featured handles GET /api/events/public/featured.
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: featuredLimit})
	if !ok {
		return
	}
	yes := true
	p.Featured = &yes
	h.list(w, r, p, models.StatusPublished)
}

// GetPublic handles GET /api/events/public/{id}.
func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	e, err := h.store.GetPublic(r.Context(), id, models.StatusPublished)
	if err != nil {
		h.deps.Fail(w, r, err, "Event")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), e))
}

// List handles GET /api/events.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit, Statuses: models.PublicationStatuses()})
	if !ok {
		return
	}
	h.list(w, r, p, p.Status)
}

// Stats handles GET /api/events/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context(), h.now().UTC())
	if err != nil {
		h.deps.Fail(w, r, err, "Event")
		return
	}
	jsonutil.OK(w, st)
}

// Get handles GET /api/events/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	e, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.deps.Fail(w, r, err, "Event")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), e))
}

// Create handles POST /api/events.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in createInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	if errs := checkDates(*in.StartDate, in.EndDate); errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}

	now := h.now().UTC()
	e := models.Event{
		ID:          primitive.NewObjectID(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Location:    strings.TrimSpace(in.Location),
		StartDate:   in.StartDate.UTC(),
		Image:       in.Image,
		Status:      in.Status,
		Featured:    in.Featured,
		CreatedByID: authz.ActorID(r),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.EndDate != nil {
		end := in.EndDate.UTC()
		e.EndDate = &end
	}
	if e.Status == "" {
		e.Status = models.StatusDraft
	}

	err := h.deps.Commit(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
		if err := h.store.Insert(ctx, &e); err != nil {
			return auditlog.Entry{}, err
		}
		return auditlog.Entry{
			ActorID:    e.CreatedByID,
			Action:     audit.ActionCreate,
			EntityType: audit.EntityEvent,
			EntityID:   e.ID,
			NewValues:  snapshot(&e),
		}, nil
	})
	if err != nil {
		h.deps.Fail(w, r, err, "Event")
		return
	}
	jsonutil.Created(w, h.view(r.Context(), &e))
}

func (in updateInput) set() bson.M {
	set := bson.M{}
	if in.Title != nil {
		set["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.Location != nil {
		set["location"] = strings.TrimSpace(*in.Location)
	}
	if in.StartDate != nil {
		set["start_date"] = in.StartDate.UTC()
	}
	if in.EndDate != nil {
		set["end_date"] = in.EndDate.UTC()
	}
	if in.Image != nil {
		set["image"] = *in.Image
	}
	if in.Status != nil {
		set["status"] = *in.Status
	}
	if in.Featured != nil {
		set["featured"] = *in.Featured
	}
	return set
}

// Update handles PUT /api/events/{id}. The date rule is checked against the
// merged start and end.
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
		h.deps.Fail(w, r, err, "Event")
		return
	}
	start, end := existing.StartDate, existing.EndDate
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil {
		end = in.EndDate
	}
	if errs := checkDates(start, end); errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}

	set := in.set()
	var updated *models.Event
	err = h.deps.Commit(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
		var err error
		if updated, err = h.store.UpdateFields(ctx, id, set); err != nil {
			return auditlog.Entry{}, err
		}
		oldV, newV := auditlog.Changes(snapshot(existing), snapshot(updated))
		return auditlog.Entry{
			ActorID:    authz.ActorID(r),
			Action:     audit.ActionUpdate,
			EntityType: audit.EntityEvent,
			EntityID:   id,
			OldValues:  oldV,
			NewValues:  newV,
		}, nil
	})
	if err != nil {
		h.deps.Fail(w, r, err, "Event")
		return
	}
	jsonutil.OK(w, h.view(r.Context(), updated))
}

// Delete handles DELETE /api/events/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	if err := entityapi.DeleteOne(r.Context(), h.deps, r, h.ops(), id); err != nil {
		h.deps.Fail(w, r, err, "Event")
		return
	}
	jsonutil.Message(w, "Event deleted successfully")
}

// Bulk handles PUT /api/events/bulk.
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
		h.deps.Fail(w, r, err, "Event")
		return
	}
	jsonutil.OK(w, res)
}
