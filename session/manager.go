package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"MaizeAIBackend/database"
	"MaizeAIBackend/models"
)

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID string
	Email  string
	Role   models.Role
}

type EventKind string

const (
	SignedIn    EventKind = "signed_in"
	SignedOut   EventKind = "signed_out"
	Invalidated EventKind = "invalidated"
)

type Event struct {
	Kind   EventKind
	UserID string
}

// Manager builds sessions from the user and scan stores and keeps one per
// user id until it is ended, invalidated or left idle for longer than ttl.
type Manager struct {
	users database.UserRepository
	scans database.ScanRepository
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	nextSub  int
	subs     map[int]func(Event)
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// NewManager returns a Manager. A ttl of zero keeps sessions until they are
// ended or invalidated.
func NewManager(users database.UserRepository, scans database.ScanRepository, ttl time.Duration, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		users:    users,
		scans:    scans,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*entry),
		subs:     make(map[int]func(Event)),
	}
}

// Subscribe registers fn for session changes. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) publish(e Event) {
	m.mu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

// Resolve returns the cached session for the identity or builds a new one.
// Profile lookup failures never leave the session unresolved, but a session
// built while a store was failing serves only the current request.
func (m *Manager) Resolve(ctx context.Context, id Identity) (*Session, error) {
	if id.UserID == "" {
		return nil, errors.New("identity has no user id")
	}

	if s, ok := m.cached(id.UserID); ok {
		return s, nil
	}

	user, complete := m.loadProfile(ctx, id)
	history, err := m.scans.ListByUser(ctx, user.ID)
	if err != nil {
		m.log.Warn("scan history unavailable", zap.String("user_id", user.ID), zap.Error(err))
		history = nil
		complete = false
	}

	s := New()
	s.Resolve(user, history)
	if !complete {
		return s, nil
	}

	m.mu.Lock()
	if e, ok := m.sessions[id.UserID]; ok && e.session.Authenticated() {
		e.lastSeen = m.now()
		m.mu.Unlock()
		return e.session, nil
	}
	m.sessions[id.UserID] = &entry{session: s, lastSeen: m.now()}
	m.mu.Unlock()

	m.publish(Event{Kind: SignedIn, UserID: id.UserID})
	return s, nil
}

func (m *Manager) cached(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok || !e.session.Authenticated() {
		return nil, false
	}
	now := m.now()
	if m.expired(e, now) {
		delete(m.sessions, userID)
		return nil, false
	}
	e.lastSeen = now
	return e.session, true
}

func (m *Manager) expired(e *entry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(e.lastSeen) >= m.ttl
}

// loadProfile reports false when the profile could not be read or stored.
// A profile that could not be read falls back to the least privileged role.
func (m *Manager) loadProfile(ctx context.Context, id Identity) (*models.User, bool) {
	user, err := m.users.GetByID(ctx, id.UserID)
	if err == nil {
		return user, true
	}
	if !errors.Is(err, database.ErrNotFound) {
		m.log.Error("error fetching user profile", zap.String("user_id", id.UserID), zap.Error(err))
		basic := models.FallbackUser(id.UserID, id.Email, models.RoleUser)
		return &basic, false
	}

	basic := models.FallbackUser(id.UserID, id.Email, id.Role)
	basic.CreatedAt = time.Now().UTC()
	basic.UpdatedAt = basic.CreatedAt
	if err := m.users.Create(ctx, &basic); err != nil {
		m.log.Error("error creating basic profile", zap.String("user_id", id.UserID), zap.Error(err))
		return &basic, false
	}
	return &basic, true
}

// Run evicts idle sessions every five minutes until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, e := range m.sessions {
		if m.expired(e, now) {
			delete(m.sessions, id)
		}
	}
}

// Lookup returns the live session for a user without resolving one.
func (m *Manager) Lookup(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// End signs the user out.
func (m *Manager) End(userID string) {
	m.mu.Lock()
	e, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if ok {
		e.session.End()
	}
	m.publish(Event{Kind: SignedOut, UserID: userID})
}

// Invalidate drops the cached session so the next request re-reads the profile.
func (m *Manager) Invalidate(userID string) {
	m.mu.Lock()
	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if ok {
		m.publish(Event{Kind: Invalidated, UserID: userID})
	}
}
