package authapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	"github.com/dalemusser/tourdesk/internal/app/store/lockout"
	userstore "github.com/dalemusser/tourdesk/internal/app/store/users"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/tourdesk/internal/app/system/authutil"
	"github.com/dalemusser/tourdesk/internal/app/system/entityapi"
	"github.com/dalemusser/tourdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/tourdesk/internal/domain/models"
	"github.com/dalemusser/tourdesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const password = "steppe-wind-42"

type fixture struct {
	h      *Handler
	db     *mongo.Database
	authn  *auth.Authenticator
	server *httptest.Server
	user   models.User
}

func setup(t *testing.T, active bool) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	users := userstore.New(db)
	deps := &entityapi.Deps{
		DB:    db,
		Log:   zap.NewNop(),
		Audit: auditlog.New(audit.New(db), zap.NewNop(), auditlog.ModeDB),
		Users: users,
	}
	tokens := auth.NewTokenManager(testutil.TestSecret, auth.DefaultTokenTTL)
	h := NewHandler(deps, users, tokens, lockout.New(db, 3, 15*time.Minute, 10*time.Minute))

	hash, err := authutil.HashPassword(password)
	require.NoError(t, err)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := users.Create(ctx, models.User{Email: "guide@tourdesk.kz", Name: "Guide", PasswordHash: hash, Active: active})
	require.NoError(t, err)

	authn := auth.NewAuthenticator(tokens, userstore.NewFetcher(db), zap.NewNop())
	srv := httptest.NewServer(Routes(h, authn, ratelimit.PerMinute(0, nil)))
	t.Cleanup(srv.Close)
	return &fixture{h: h, db: db, authn: authn, server: srv, user: u}
}

func login(t *testing.T, h *Handler, email, pw string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Login(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/login", map[string]any{"email": email, "password": pw}))
	return rec
}

func countAudit(t *testing.T, db *mongo.Database, action string) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := db.Collection("audit_logs").CountDocuments(ctx, bson.M{"action": action})
	require.NoError(t, err)
	return n
}

func TestLogin_Success(t *testing.T) {
	f := setup(t, true)

	rec := login(t, f.h, "GUIDE@tourdesk.kz", password)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res LoginResult
	testutil.DecodeEnvelope(t, rec, &res)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, f.user.ID, res.User.ID)
	assert.NotNil(t, res.User.LastLoginAt)
	assert.NotContains(t, rec.Body.String(), "password")

	claims, err := f.h.tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID.Hex(), claims.Subject)

	assert.EqualValues(t, 1, countAudit(t, f.db, audit.ActionLogin))
}

func TestLogin_Failures(t *testing.T) {
	f := setup(t, true)

	assert.Equal(t, http.StatusUnauthorized, login(t, f.h, "guide@tourdesk.kz", "wrong-one").Code)
	assert.Equal(t, http.StatusUnauthorized, login(t, f.h, "nobody@tourdesk.kz", password).Code)
	assert.Equal(t, http.StatusBadRequest, login(t, f.h, "not-an-email", password).Code)
	assert.EqualValues(t, 0, countAudit(t, f.db, audit.ActionLogin))
}

func TestLogin_Lockout(t *testing.T) {
	f := setup(t, true)

	assert.Equal(t, http.StatusUnauthorized, login(t, f.h, "guide@tourdesk.kz", "bad-1").Code)
	assert.Equal(t, http.StatusUnauthorized, login(t, f.h, "guide@tourdesk.kz", "bad-2").Code)
	assert.Equal(t, http.StatusTooManyRequests, login(t, f.h, "guide@tourdesk.kz", "bad-3").Code)

	// The right password is refused while locked.
	assert.Equal(t, http.StatusTooManyRequests, login(t, f.h, "guide@tourdesk.kz", password).Code)
}

func TestLogin_Inactive(t *testing.T) {
	f := setup(t, false)
	rec := login(t, f.h, "guide@tourdesk.kz", password)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "deactivated")
}

func TestRoutes_MeLogoutPassword(t *testing.T) {
	f := setup(t, true)
	me := testutil.TestUser{ID: f.user.ID.Hex(), Name: f.user.Name, Email: f.user.Email, Role: f.user.Role}

	do := func(method, path string, body any, authed bool) *http.Response {
		t.Helper()
		req := testutil.NewJSONRequest(method, f.server.URL+path, body)
		req.RequestURI = ""
		if authed {
			testutil.BearerFor(t, req, me)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/me", nil, false).StatusCode)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/me", nil, true).StatusCode)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPut, "/password",
		map[string]any{"currentPassword": "nope-nope", "newPassword": "fresh-steppe-9"}, true).StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPut, "/password",
		map[string]any{"currentPassword": password, "newPassword": "abc"}, true).StatusCode)
	assert.Equal(t, http.StatusOK, do(http.MethodPut, "/password",
		map[string]any{"currentPassword": password, "newPassword": "fresh-steppe-9"}, true).StatusCode)

	assert.Equal(t, http.StatusUnauthorized, login(t, f.h, "guide@tourdesk.kz", password).Code)
	assert.Equal(t, http.StatusOK, login(t, f.h, "guide@tourdesk.kz", "fresh-steppe-9").Code)

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/logout", nil, true).StatusCode)
	assert.EqualValues(t, 1, countAudit(t, f.db, audit.ActionPasswordChange))
	assert.EqualValues(t, 1, countAudit(t, f.db, audit.ActionLogout))
}

func TestLockedMessage(t *testing.T) {
	assert.Contains(t, lockedMessage(time.Now().Add(5*time.Minute)), "minute(s)")
	assert.Contains(t, lockedMessage(time.Now().Add(20*time.Second)), "second(s)")
}
