package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"MaizeAIBackend/models"
	"MaizeAIBackend/session"
	"MaizeAIBackend/testutil"
)

// TestMain makes sure the rate limiter sweeper exits with its context.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	farmer = models.User{ID: "11111111-1111-1111-1111-111111111111", Email: "f@farm.ke", Name: "Farmer", Role: models.RoleFarmer}
	admin  = models.User{ID: "22222222-2222-2222-2222-222222222222", Email: "a@farm.ke", Name: "Admin", Role: models.RoleAdmin}
	plain  = models.User{ID: "33333333-3333-3333-3333-333333333333", Email: "u@farm.ke", Name: "User", Role: models.RoleUser}
)

type harness struct {
	tokens  *TokenManager
	revoked *session.MemoryRevocations
	auth    *Authenticator
}

func newHarness() *harness {
	tokens := NewTokenManager("test-secret", time.Hour)
	revoked := session.NewMemoryRevocations()
	mgr := session.NewManager(testutil.NewUsers(farmer, admin, plain), testutil.NewScans(), time.Hour, nil)
	return &harness{tokens: tokens, revoked: revoked, auth: NewAuthenticator(tokens, revoked, mgr, nil)}
}

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("content"))
}

func (h *harness) serve(t *testing.T, required models.Role, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	handler := h.auth.Middleware(RequireRole(required)(http.HandlerFunc(ok)))
	req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
	if user != nil {
		token, err := h.tokens.Generate(*user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestUserDeniedAdminView(t *testing.T) {
	rec := newHarness().serve(t, models.RoleAdmin, &plain)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, session.DefaultPath, rec.Header().Get("Location"))
	assert.NotContains(t, rec.Body.String(), "content")

	var body redirectBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/dashboard", body.Redirect)
}

func TestAdminGrantedEveryView(t *testing.T) {
	h := newHarness()
	for _, role := range []models.Role{models.RoleAdmin, models.RoleFarmer, models.RoleNone} {
		rec := h.serve(t, role, &admin)
		assert.Equal(t, http.StatusOK, rec.Code, "required %q", role)
		assert.Equal(t, "content", rec.Body.String())
	}
}

func TestFarmerGrantedFarmerView(t *testing.T) {
	h := newHarness()
	assert.Equal(t, http.StatusOK, h.serve(t, models.RoleFarmer, &farmer).Code)
	assert.Equal(t, http.StatusForbidden, h.serve(t, models.RoleAdmin, &farmer).Code)
	assert.Equal(t, http.StatusForbidden, h.serve(t, models.RoleFarmer, &plain).Code)
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	rec := newHarness().serve(t, models.RoleNone, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, session.LoginPath, rec.Header().Get("Location"))
	assert.NotContains(t, rec.Body.String(), "content")
}

func TestInvalidAndRevokedTokens(t *testing.T) {
	h := newHarness()
	handler := h.auth.Middleware(http.HandlerFunc(ok))

	req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := h.tokens.Generate(farmer)
	require.NoError(t, err)
	claims, err := h.tokens.Parse(token)
	require.NoError(t, err)
	require.NoError(t, h.revoked.Revoke(req.Context(), claims.ID, claims.ExpiresAt.Time))

	req = httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, session.LoginPath, rec.Header().Get("Location"))
}

func TestExpiredToken(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := tokens.Generate(farmer)
	require.NoError(t, err)

	_, err = NewTokenManager("test-secret", time.Minute).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenManager("other-secret", time.Minute).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenClaims(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Hour)
	token, err := tokens.Generate(admin)
	require.NoError(t, err)

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestLoadingSessionGetsNeutralAnswer(t *testing.T) {
	handler := RequireRole(models.RoleNone)(http.HandlerFunc(ok))
	req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req = req.WithContext(session.WithSession(req.Context(), session.New()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Empty(t, rec.Header().Get("Location"))
	assert.NotContains(t, rec.Body.String(), "content")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	handler := rl.Middleware(http.HandlerFunc(ok))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"))

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1003"))

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.requests)
}

func TestLoggingRecordsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/scans", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "/api/scans", entry.ContextMap()["path"])
	assert.EqualValues(t, http.StatusTeapot, entry.ContextMap()["status"])
}

func TestRateLimiterRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRateLimiter(10).Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
