// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// User is the authenticated back-office user in the request context.
// It is loaded fresh from the database on each request so role changes and
// deactivated accounts take effect immediately, even for unexpired tokens.
type User struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// UserID returns the user's ID as an ObjectID, or NilObjectID if malformed.
func (u *User) UserID() primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag from the request context.
func CurrentUser(r *http.Request) (*User, bool) {
	u, ok := r.Context().Value(currentUserKey).(*User)
	return u, ok
}

func withUser(r *http.Request, u *User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// WithTestUser injects a User into the request context for testing.
func WithTestUser(r *http.Request, u *User) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| UserFetcher interface                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// ErrUserInactive is returned by a UserFetcher for a deactivated account.
var ErrUserInactive = errors.New("account is deactivated")

// UserFetcher loads the current state of a token's subject. It returns
// mongo.ErrNoDocuments (or any error) for an unknown user and
// ErrUserInactive for a deactivated one.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) (*User, error)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// Authenticator verifies bearer tokens and loads the user they name.
type Authenticator struct {
	tokens  *TokenManager
	fetcher UserFetcher
	logger  *zap.Logger
}

// NewAuthenticator builds an Authenticator.
func NewAuthenticator(tokens *TokenManager, fetcher UserFetcher, logger *zap.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, fetcher: fetcher, logger: logger}
}

// Tokens returns the underlying TokenManager.
func (a *Authenticator) Tokens() *TokenManager { return a.tokens }

// RequireAuth rejects requests without a valid bearer token for an active user
// with 401, and otherwise injects the user into the request context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := BearerToken(r.Header.Get("Authorization"))
		if !ok {
			jsonutil.Unauthorized(w, "Access denied. No token provided.")
			return
		}

		claims, err := a.tokens.Parse(raw)
		if err != nil {
			a.logger.Debug("bearer token rejected",
				zap.Error(err),
				zap.String("path", r.URL.Path))
			if errors.Is(err, ErrTokenExpired) {
				jsonutil.Unauthorized(w, "Token expired.")
				return
			}
			jsonutil.Unauthorized(w, "Invalid token.")
			return
		}

		u, err := a.fetcher.FetchUser(r.Context(), claims.ID)
		if err != nil {
			if errors.Is(err, ErrUserInactive) {
				jsonutil.Unauthorized(w, "Account is deactivated.")
				return
			}
			a.logger.Info("token subject not found",
				zap.String("user_id", claims.ID),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			jsonutil.Unauthorized(w, "Invalid token.")
			return
		}

		next.ServeHTTP(w, withUser(r, u))
	})
}

// RequireRole returns middleware that answers 401 when no user is in context
// and 403 when the user's role is not one of allowed.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				jsonutil.Unauthorized(w, "Access denied. No token provided.")
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				jsonutil.Forbidden(w, "Access denied. Insufficient permissions.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
