// Package session holds the per-user session state, the role gate that
// decides whether a session may see a view, and the manager that builds
// sessions from the user store.
package session

import (
	"context"
	"sync"

	"MaizeAIBackend/models"
)

// Session is the server-held record of an authenticated user. The manager
// writes the user slice, the scan workflow writes the history slice.
type Session struct {
	mu       sync.RWMutex
	resolved bool
	user     *models.User
	history  []models.ScanResult
}

// New returns a session that is still initializing.
func New() *Session {
	return &Session{}
}

// Resolve finishes initialization. A nil user leaves the session unauthenticated.
func (s *Session) Resolve(u *models.User, history []models.ScanResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = true
	if u == nil {
		s.user = nil
		s.history = nil
		return
	}
	cp := *u
	s.user = &cp
	s.history = append([]models.ScanResult(nil), history...)
}

// End signs the session out and drops its history.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = true
	s.user = nil
	s.history = nil
}

func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.resolved
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved && s.user != nil
}

func (s *Session) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// SetUser replaces the profile of an authenticated session.
func (s *Session) SetUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return
	}
	s.user = &u
}

// History returns a copy of the scan history, most recent first.
func (s *Session) History() []models.ScanResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ScanResult(nil), s.history...)
}

// PrependScan records a freshly persisted scan at the head of the history.
func (s *Session) PrependScan(r models.ScanResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return
	}
	s.history = append([]models.ScanResult{r}, s.history...)
}

type contextKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
