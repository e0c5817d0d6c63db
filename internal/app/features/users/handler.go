// Package users is the admin-only management of back-office accounts.
package users

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	userstore "github.com/dalemusser/tourdesk/internal/app/store/users"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/authutil"
	"github.com/dalemusser/tourdesk/internal/app/system/authz"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/inputval"
	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultLimit = 20

type Handler struct {
	deps  *entityapi.Deps
	store *userstore.Store
}

func NewHandler(deps *entityapi.Deps, store *userstore.Store) *Handler {
	return &Handler{deps: deps, store: store}
}

type createInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin editor"`
	Active   *bool  `json:"active"`
}

type updateInput struct {
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Name     *string `json:"name" validate:"omitempty,notblank,max=100"`
	Password *string `json:"password"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin editor"`
	Active   *bool   `json:"active"`
}

func snapshot(u *models.User) map[string]any {
	return map[string]any{
		"email":  u.Email,
		"name":   u.Name,
		"role":   u.Role,
		"active": u.Active,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		jsonutil.Conflict(w, "A user with this email already exists")
		return
	}
	h.deps.Fail(w, r, err, "User")
}

func passwordErrors(password string) inputval.Errors {
	var errs inputval.Errors
	if err := authutil.ValidatePassword(password); err != nil {
		errs.Add("password", err.Error())
	}
	return errs
}

// List handles GET /api/users (search, role, active).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := entityapi.ParseList(w, r, listquery.Options{DefaultLimit: defaultLimit})
	if !ok {
		return
	}
	f := userstore.ListFilter{Search: p.Search, Role: strings.ToLower(query.Get(r, "role"))}
	switch query.Get(r, "active") {
	case "true":
		yes := true
		f.Active = &yes
	case "false":
		no := false
		f.Active = &no
	}
	users, total, err := h.store.List(r.Context(), f, p.Page, p.Limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonutil.OK(w, listquery.NewPage(users, p, total))
}

// Get handles GET /api/users/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	u, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonutil.OK(w, u)
}

// Create handles POST /api/users. A duplicate email is 409.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in createInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	if errs := passwordErrors(in.Password); errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}
	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	u := models.User{
		ID:           primitive.NewObjectID(),
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         in.Role,
		Active:       in.Active == nil || *in.Active,
	}
	err = h.deps.Commit(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
		created, err := h.store.Create(ctx, u)
		if err != nil {
			return auditlog.Entry{}, err
		}
		u = created
		return auditlog.Entry{
			ActorID:    authz.ActorID(r),
			Action:     audit.ActionCreate,
			EntityType: audit.EntityUser,
			EntityID:   u.ID,
			NewValues:  snapshot(&u),
		}, nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonutil.Created(w, u)
}

// Update handles PUT /api/users/{id}. Admins cannot demote or deactivate
// themselves.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	var in updateInput
	if !entityapi.Decode(w, r, &in) {
		return
	}

	var errs inputval.Errors
	if in.Password != nil {
		errs = append(errs, passwordErrors(*in.Password)...)
	}
	if id == authz.ActorID(r) {
		if in.Role != nil && *in.Role != models.RoleAdmin {
			errs.Add("role", "You cannot change your own role")
		}
		if in.Active != nil && !*in.Active {
			errs.Add("active", "You cannot deactivate your own account")
		}
	}
	if errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	upd := userstore.UserUpdate{Email: in.Email, Role: in.Role, Active: in.Active}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		upd.Name = &name
	}
	if in.Password != nil {
		hash, err := authutil.HashPassword(*in.Password)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		upd.PasswordHash = &hash
	}

	var updated *models.User
	err = h.deps.Commit(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
		var err error
		if updated, err = h.store.Update(ctx, id, upd); err != nil {
			return auditlog.Entry{}, err
		}
		oldV, newV := auditlog.Changes(snapshot(existing), snapshot(updated))
		if upd.PasswordHash != nil {
			newV["passwordChanged"] = true
		}
		return auditlog.Entry{
			ActorID:    authz.ActorID(r),
			Action:     audit.ActionUpdate,
			EntityType: audit.EntityUser,
			EntityID:   id,
			OldValues:  oldV,
			NewValues:  newV,
		}, nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonutil.OK(w, updated)
}

// Delete handles DELETE /api/users/{id}. Admins cannot delete themselves.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := entityapi.ParseID(w, r)
	if !ok {
		return
	}
	if id == authz.ActorID(r) {
		jsonutil.BadRequest(w, "You cannot delete your own account")
		return
	}
	ops := entityapi.Ops[models.User]{
		EntityType: audit.EntityUser,
		Get:        h.store.GetByID,
		Delete:     h.store.Delete,
		Snapshot:   snapshot,
	}
	if err := entityapi.DeleteOne(r.Context(), h.deps, r, ops, id); err != nil {
		h.fail(w, r, err)
		return
	}
	jsonutil.Message(w, "User deleted successfully")
}
