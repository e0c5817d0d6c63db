// Package authapi serves /api/auth: bearer-token login, the current user,
// logout and password changes.
package authapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	"github.com/dalemusser/tourdesk/internal/app/store/lockout"
	userstore "github.com/dalemusser/tourdesk/internal/app/store/users"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/tourdesk/internal/app/system/authutil"
	"github.com/dalemusser/tourdesk/internal/app/system/authz"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/inputval"
	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const invalidCredentials = "Invalid email or password"

type Handler struct {
	deps    *entityapi.Deps
	users   *userstore.Store
	tokens  *auth.TokenManager
	lockout *lockout.Store // nil disables per-account lockout
}

func NewHandler(deps *entityapi.Deps, users *userstore.Store, tokens *auth.TokenManager, lock *lockout.Store) *Handler {
	return &Handler{deps: deps, users: users, tokens: tokens, lockout: lock}
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type passwordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// LoginResult is the data payload of a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

func lockedMessage(until time.Time) string {
	remaining := time.Until(until)
	if remaining > time.Minute {
		return fmt.Sprintf("Too many failed login attempts. Please try again in %d minute(s).", int(remaining.Minutes())+1)
	}
	return fmt.Sprintf("Too many failed login attempts. Please try again in %d second(s).", int(remaining.Seconds())+1)
}

// fail counts a failed attempt and answers 401, or 429 when this attempt
// triggered a lockout.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, email, reason string) {
	h.deps.Log.Info("login failed", zap.String("email", email), zap.String("reason", reason))
	if h.lockout != nil {
		locked, err := h.lockout.RecordFailure(r.Context(), email)
		if err != nil {
			h.deps.Log.Warn("record login failure", zap.Error(err))
		}
		if locked {
			h.deps.Log.Warn("account locked out", zap.String("email", email))
			jsonutil.TooManyRequests(w, "Too many failed login attempts. Please try again later.")
			return
		}
	}
	jsonutil.Unauthorized(w, invalidCredentials)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	email := authutil.NormalizeEmail(in.Email)

	if h.lockout != nil {
		if until := h.lockout.LockedUntil(r.Context(), email); until != nil {
			jsonutil.TooManyRequests(w, lockedMessage(*until))
			return
		}
	}

	user, err := h.users.GetByEmail(r.Context(), email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		authutil.DummyCheck(in.Password)
		h.fail(w, r, email, "unknown email")
		return
	}
	if err != nil {
		h.deps.Fail(w, r, err, "User")
		return
	}
	if !authutil.CheckPassword(in.Password, user.PasswordHash) {
		h.fail(w, r, email, "wrong password")
		return
	}
	if !user.Active {
		h.deps.Log.Info("login refused for inactive account", zap.String("email", email))
		jsonutil.Unauthorized(w, "Account is deactivated")
		return
	}

	if h.lockout != nil {
		if err := h.lockout.Clear(r.Context(), email); err != nil {
			h.deps.Log.Warn("clear lockout", zap.Error(err))
		}
	}
	if err := h.users.TouchLogin(r.Context(), user.ID); err != nil {
		h.deps.Log.Warn("update last login", zap.Error(err))
	}

	token, exp, err := h.tokens.Issue(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		h.deps.Fail(w, r, err, "User")
		return
	}
	if err := h.deps.Audit.Record(r.Context(), r, auditlog.Entry{
		ActorID:    user.ID,
		Action:     audit.ActionLogin,
		EntityType: audit.EntityUser,
		EntityID:   user.ID,
	}); err != nil {
		h.deps.Log.Warn("record login", zap.Error(err))
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	jsonutil.OK(w, LoginResult{Token: token, ExpiresAt: exp, User: user})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "Authentication required")
		return
	}
	user, err := h.users.GetByID(r.Context(), cu.UserID())
	if err != nil {
		h.deps.Fail(w, r, err, "User")
		return
	}
	jsonutil.OK(w, user)
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so this only
// records the event; the client discards its token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id := authz.ActorID(r)
	if err := h.deps.Audit.Record(r.Context(), r, auditlog.Entry{
		ActorID:    id,
		Action:     audit.ActionLogout,
		EntityType: audit.EntityUser,
		EntityID:   id,
	}); err != nil {
		h.deps.Log.Warn("record logout", zap.Error(err))
	}
	jsonutil.Message(w, "Logged out successfully")
}

// ChangePassword handles PUT /api/auth/password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in passwordInput
	if !entityapi.Decode(w, r, &in) {
		return
	}
	var errs inputval.Errors
	if err := authutil.ValidatePassword(in.NewPassword); err != nil {
		errs.Add("newPassword", err.Error())
	} else if in.NewPassword == in.CurrentPassword {
		errs.Add("newPassword", "New password must differ from the current password")
	}
	if errs.HasErrors() {
		jsonutil.ValidationErrors(w, errs)
		return
	}

	id := authz.ActorID(r)
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.deps.Fail(w, r, err, "User")
		return
	}
	if !authutil.CheckPassword(in.CurrentPassword, user.PasswordHash) {
		jsonutil.ValidationErrors(w, inputval.Errors{
			inputval.Field("currentPassword", "Current password is incorrect", inputval.LocationBody),
		})
		return
	}
	hash, err := authutil.HashPassword(in.NewPassword)
	if err != nil {
		h.deps.Fail(w, r, err, "User")
		return
	}

	err = h.deps.Commit(r.Context(), r, func(ctx context.Context) (auditlog.Entry, error) {
		if _, err := h.users.Update(ctx, id, userstore.UserUpdate{PasswordHash: &hash}); err != nil {
			return auditlog.Entry{}, err
		}
		return auditlog.Entry{
			ActorID:    id,
			Action:     audit.ActionPasswordChange,
			EntityType: audit.EntityUser,
			EntityID:   id,
		}, nil
	})
	if err != nil {
		h.deps.Fail(w, r, err, "User")
		return
	}
	jsonutil.Message(w, "Password changed successfully")
}
