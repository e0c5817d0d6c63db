// Package auditapi exposes the audit trail read-only to admins.
package auditapi

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/inputval"
	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultLimit = 50
	historyLimit = 200
)

type Handler struct {
	deps  *entityapi.Deps
	store *audit.Store
}

func NewHandler(deps *entityapi.Deps, store *audit.Store) *Handler {
	return &Handler{deps: deps, store: store}
}

// RecordView is an audit record joined with its actor.
type RecordView struct {
	audit.Record
	Actor *models.UserRef `json:"actor"`
}

func (h *Handler) views(r *http.Request, recs []audit.Record) []RecordView {
	ids := make([]primitive.ObjectID, 0, len(recs))
	for _, rec := range recs {
		if rec.ActorID != nil {
			ids = append(ids, *rec.ActorID)
		}
	}
	refs := h.deps.Refs(r.Context(), ids...)
	out := make([]RecordView, len(recs))
	for i, rec := range recs {
		out[i] = RecordView{Record: rec}
		if rec.ActorID != nil {
			out[i].Actor = refs[*rec.ActorID]
		}
	}
	return out
}

func queryErr(path, msg, value string) inputval.FieldError {
	fe := inputval.Field(path, msg, inputval.LocationQuery)
	fe.Value = value
	return fe
}

func parseObjectID(r *http.Request, key string, errs *inputval.Errors) *primitive.ObjectID {
	raw := query.Get(r, key)
	if raw == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		*errs = append(*errs, queryErr(key, key+" must be a valid id", raw))
		return nil
	}
	return &id
}

// parseTime accepts RFC 3339 or a plain date. A plain "to" date covers the
// whole day.
func parseTime(r *http.Request, key string, endOfDay bool, errs *inputval.Errors) *time.Time {
	raw := query.Get(r, key)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		*errs = append(*errs, queryErr(key, key+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp", raw))
		return nil
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t
}

func parseFilter(r *http.Request) (audit.QueryFilter, inputval.Errors) {
	var errs inputval.Errors
	f := audit.QueryFilter{
		ActorID:  parseObjectID(r, "actorId", &errs),
		EntityID: parseObjectID(r, "entityId", &errs),
		From:     parseTime(r, "from", false, &errs),
		To:       parseTime(r, "to", true, &errs),
	}
	if a := strings.ToUpper(query.Get(r, "action")); a != "" {
		if !slices.Contains(audit.AllActions(), a) {
			errs = append(errs, queryErr("action", "action must be one of "+strings.Join(audit.AllActions(), ", "), a))
		}
		f.Action = a
	}
	if et := strings.ToUpper(query.Get(r, "entityType")); et != "" {
		if !slices.Contains(audit.AllEntityTypes(), et) {
			errs = append(errs, queryErr("entityType", "entityType must be one of "+strings.Join(audit.AllEntityTypes(), ", "), et))
		}
		f.EntityType = et
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		errs = append(errs, queryErr("to", "to must not be before from", query.Get(r, "to")))
	}
	return f, errs
}

// List handles GET /api/audit.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit})
	if !ok {
		return
	}
	f, errs := parseFilter(r)
	if errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}
	recs, total, err := h.store.List(r.Context(), f, p.Page, p.Limit)
	if err != nil {
		h.deps.Fail(w, r, err, "Audit record")
		return
	}
	jsonutil.OK(w, listquery.NewPage(h.views(r, recs), p, total))
}

// History handles GET /api/audit/{entityType}/{entityId}.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entityType := strings.ToUpper(chi.URLParam(r, "entityType"))
	rawID := chi.URLParam(r, "entityId")

	var errs inputval.Errors
	if !slices.Contains(audit.AllEntityTypes(), entityType) {
		errs = append(errs, inputval.FieldError{Type: "field", Msg: "entityType must be one of " + strings.Join(audit.AllEntityTypes(), ", "),
			Path: "entityType", Location: inputval.LocationParam, Value: entityType})
	}
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		errs = append(errs, inputval.FieldError{Type: "field", Msg: "entityId must be a valid id",
			Path: "entityId", Location: inputval.LocationParam, Value: rawID})
	}
	if errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}

	recs, err := h.store.ForEntity(r.Context(), entityType, id, historyLimit)
	if err != nil {
		h.deps.Fail(w, r, err, "Audit record")
		return
	}
	jsonutil.OK(w, h.views(r, recs))
}
