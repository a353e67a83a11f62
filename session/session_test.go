package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MaizeAIBackend/database"
	"MaizeAIBackend/models"
	"MaizeAIBackend/testutil"
)

func resolved(role models.Role) *Session {
	s := New()
	s.Resolve(&models.User{ID: "u-1", Email: "a@b.c", Name: "A", Role: role}, nil)
	return s
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name     string
		session  *Session
		required models.Role
		state    State
		redirect string
	}{
		{"user denied admin view", resolved(models.RoleUser), models.RoleAdmin, StateInsufficient, DefaultPath},
		{"user denied farmer view", resolved(models.RoleUser), models.RoleFarmer, StateInsufficient, DefaultPath},
		{"admin on admin view", resolved(models.RoleAdmin), models.RoleAdmin, StateAuthorized, ""},
		{"admin on farmer view", resolved(models.RoleAdmin), models.RoleFarmer, StateAuthorized, ""},
		{"admin on open view", resolved(models.RoleAdmin), models.RoleNone, StateAuthorized, ""},
		{"farmer on farmer view", resolved(models.RoleFarmer), models.RoleFarmer, StateAuthorized, ""},
		{"no session", nil, models.RoleNone, StateUnauthenticated, LoginPath},
		{"signed out", func() *Session { s := New(); s.Resolve(nil, nil); return s }(), models.RoleNone, StateUnauthenticated, LoginPath},
		{"loading", New(), models.RoleAdmin, StateInitializing, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Evaluate(tc.session, tc.required)
			assert.Equal(t, tc.state, d.State)
			assert.Equal(t, tc.redirect, d.Redirect)
			assert.Equal(t, tc.state == StateAuthorized, d.Allowed())
		})
	}
}

func TestGateTransitions(t *testing.T) {
	s := New()
	g := NewGate(models.RoleFarmer)

	d, err := g.Observe(s)
	require.NoError(t, err)
	assert.Equal(t, StateInitializing, d.State)

	s.Resolve(&models.User{ID: "u-1", Role: models.RoleFarmer}, nil)
	d, err = g.Observe(s)
	require.NoError(t, err)
	assert.True(t, d.Allowed())

	s.End()
	d, err = g.Observe(s)
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, d.State)
	assert.Equal(t, LoginPath, d.Redirect)

	// Signing back in does not reopen a view that already redirected.
	s.Resolve(&models.User{ID: "u-1", Role: models.RoleFarmer}, nil)
	d, err = g.Observe(s)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StateUnauthenticated, d.State)
	assert.Equal(t, StateUnauthenticated, g.State())
}

func TestGateInsufficientIsTerminal(t *testing.T) {
	g := NewGate(models.RoleAdmin)
	_, err := g.Observe(resolved(models.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, StateInsufficient, g.State())

	d, err := g.Observe(resolved(models.RoleAdmin))
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, DefaultPath, d.Redirect)
}

func TestSessionHistory(t *testing.T) {
	s := New()
	s.PrependScan(models.ScanResult{ID: "ignored"})
	assert.Empty(t, s.History())

	s.Resolve(&models.User{ID: "u-1", Role: models.RoleFarmer}, []models.ScanResult{{ID: "old"}})
	s.PrependScan(models.ScanResult{ID: "new"})

	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, "new", h[0].ID)

	h[0].ID = "mutated"
	assert.Equal(t, "new", s.History()[0].ID)

	s.End()
	assert.Empty(t, s.History())
	assert.False(t, s.Authenticated())
	assert.False(t, s.Loading())
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s := New()
	got, ok := FromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestManagerResolveExistingProfile(t *testing.T) {
	users := testutil.NewUsers(models.User{ID: "u-1", Email: "w@farm.ke", Name: "Wanjiru", Role: models.RoleFarmer})
	scans := testutil.NewScans(
		models.ScanResult{ID: "s1", UserID: "u-1", CreatedAt: time.Unix(100, 0)},
		models.ScanResult{ID: "s2", UserID: "u-1", CreatedAt: time.Unix(200, 0)},
	)
	m := NewManager(users, scans, 0, nil)

	var events []Event
	unsubscribe := m.Subscribe(func(e Event) { events = append(events, e) })

	s, err := m.Resolve(context.Background(), Identity{UserID: "u-1"})
	require.NoError(t, err)
	u, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, "Wanjiru", u.Name)
	require.Len(t, s.History(), 2)
	assert.Equal(t, "s2", s.History()[0].ID)

	again, err := m.Resolve(context.Background(), Identity{UserID: "u-1"})
	require.NoError(t, err)
	assert.Same(t, s, again)

	m.End("u-1")
	assert.False(t, s.Authenticated())
	unsubscribe()
	m.Invalidate("u-1")

	assert.Equal(t, []Event{{SignedIn, "u-1"}, {SignedOut, "u-1"}}, events)
}

func TestManagerCreatesMissingProfile(t *testing.T) {
	users := testutil.NewUsers()
	m := NewManager(users, testutil.NewScans(), 0, nil)

	s, err := m.Resolve(context.Background(), Identity{UserID: "u-2", Email: "new@farm.ke"})
	require.NoError(t, err)
	u, _ := s.User()
	assert.Equal(t, models.RoleFarmer, u.Role)
	assert.Equal(t, models.FallbackName, u.Name)

	stored, err := users.GetByID(context.Background(), "u-2")
	require.NoError(t, err)
	assert.Equal(t, "new@farm.ke", stored.Email)
}

func TestManagerFallsBackWhenBackendFails(t *testing.T) {
	users := testutil.NewUsers()
	users.GetErr = errors.New("connection refused")
	scans := testutil.NewScans()
	scans.ListErr = errors.New("timeout")
	m := NewManager(users, scans, 0, nil)

	s, err := m.Resolve(context.Background(), Identity{UserID: "u-3", Role: models.RoleAdmin})
	require.NoError(t, err)
	u, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, models.FallbackEmail, u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.Empty(t, s.History())
	assert.Zero(t, users.Creates)

	_, cached := m.Lookup("u-3")
	assert.False(t, cached)
}

func TestManagerReloadsAfterBackendRecovers(t *testing.T) {
	users := testutil.NewUsers(models.User{ID: "u-1", Email: "w@farm.ke", Name: "Wanjiru", Role: models.RoleUser})
	users.GetErr = errors.New("connection refused")
	m := NewManager(users, testutil.NewScans(), 0, nil)

	degraded, err := m.Resolve(context.Background(), Identity{UserID: "u-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, StateInsufficient, Evaluate(degraded, models.RoleAdmin).State)

	users.GetErr = nil
	s, err := m.Resolve(context.Background(), Identity{UserID: "u-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.NotSame(t, degraded, s)
	u, _ := s.User()
	assert.Equal(t, "w@farm.ke", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.Equal(t, StateInsufficient, Evaluate(s, models.RoleAdmin).State)
}

func TestManagerReloadsAfterHistoryFailure(t *testing.T) {
	users := testutil.NewUsers(models.User{ID: "u-1", Role: models.RoleFarmer})
	scans := testutil.NewScans(models.ScanResult{ID: "s1", UserID: "u-1"})
	scans.ListErr = errors.New("timeout")
	m := NewManager(users, scans, 0, nil)

	s, err := m.Resolve(context.Background(), Identity{UserID: "u-1"})
	require.NoError(t, err)
	assert.Empty(t, s.History())

	scans.ListErr = nil
	s, err = m.Resolve(context.Background(), Identity{UserID: "u-1"})
	require.NoError(t, err)
	assert.Len(t, s.History(), 1)
}

func TestManagerEvictsIdleSessions(t *testing.T) {
	users := testutil.NewUsers(
		models.User{ID: "u-1", Role: models.RoleFarmer},
		models.User{ID: "u-2", Role: models.RoleFarmer},
	)
	m := NewManager(users, testutil.NewScans(), time.Hour, nil)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	first, err := m.Resolve(context.Background(), Identity{UserID: "u-1"})
	require.NoError(t, err)
	_, err = m.Resolve(context.Background(), Identity{UserID: "u-2"})
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	_, err = m.Resolve(context.Background(), Identity{UserID: "u-2"})
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	m.sweep()
	_, ok := m.Lookup("u-1")
	assert.False(t, ok)
	_, ok = m.Lookup("u-2")
	assert.True(t, ok)

	again, err := m.Resolve(context.Background(), Identity{UserID: "u-1"})
	require.NoError(t, err)
	assert.NotSame(t, first, again)

	now = now.Add(2 * time.Hour)
	stale, _ := m.Lookup("u-2")
	fresh, err := m.Resolve(context.Background(), Identity{UserID: "u-2"})
	require.NoError(t, err)
	assert.NotSame(t, stale, fresh)
}

func TestManagerRunStopsWithContext(t *testing.T) {
	m := NewManager(testutil.NewUsers(), testutil.NewScans(), time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestManagerCreateFailureStillResolves(t *testing.T) {
	users := testutil.NewUsers()
	users.CreateErr = database.ErrDuplicate
	m := NewManager(users, testutil.NewScans(), 0, nil)

	s, err := m.Resolve(context.Background(), Identity{UserID: "u-4"})
	require.NoError(t, err)
	assert.True(t, s.Authenticated())
	assert.Equal(t, 1, users.Creates)
}

func TestManagerInvalidateForcesReload(t *testing.T) {
	users := testutil.NewUsers(models.User{ID: "u-1", Name: "A", Role: models.RoleUser})
	m := NewManager(users, testutil.NewScans(), 0, nil)

	s, err := m.Resolve(context.Background(), Identity{UserID: "u-1"})
	require.NoError(t, err)
	require.NoError(t, users.UpdateRole(context.Background(), "u-1", models.RoleAdmin))

	m.Invalidate("u-1")
	_, ok := m.Lookup("u-1")
	assert.False(t, ok)

	fresh, err := m.Resolve(context.Background(), Identity{UserID: "u-1"})
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
	u, _ := fresh.User()
	assert.Equal(t, models.RoleAdmin, u.Role)
}

func TestManagerRejectsEmptyIdentity(t *testing.T) {
	m := NewManager(testutil.NewUsers(), testutil.NewScans(), 0, nil)
	_, err := m.Resolve(context.Background(), Identity{})
	assert.Error(t, err)
}

func TestMemoryRevocations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewMemoryRevocations()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "jti-1", now.Add(time.Hour)))
	require.NoError(t, r.Revoke(ctx, "jti-old", now.Add(-time.Minute)))

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = r.IsRevoked(ctx, "jti-old")
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, _ = r.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked)
}

func TestRedisRevocationsSkipsExpiredTokens(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	r := NewRedisRevocations(client)
	assert.NoError(t, r.Revoke(context.Background(), "jti", time.Now().Add(-time.Second)))
}
