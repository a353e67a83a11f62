package session

import (
	"errors"
	"fmt"

	"MaizeAIBackend/models"
)

type State int

const (
	StateInitializing State = iota
	StateUnauthenticated
	StateInsufficient
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateInsufficient:
		return "authenticated-insufficient"
	case StateAuthorized:
		return "authenticated-authorized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	LoginPath   = "/login"
	DefaultPath = "/dashboard"
)

var ErrIllegalTransition = errors.New("illegal gate transition")

// Decision is the outcome of evaluating a session against a view.
type Decision struct {
	State    State
	Redirect string
}

func (d Decision) Allowed() bool {
	return d.State == StateAuthorized
}

// Evaluate decides render-or-redirect for a view requiring the given role.
// A nil or still-loading session never renders protected content.
func Evaluate(s *Session, required models.Role) Decision {
	if s == nil {
		return Decision{State: StateUnauthenticated, Redirect: LoginPath}
	}
	if s.Loading() {
		return Decision{State: StateInitializing}
	}
	u, ok := s.User()
	if !ok {
		return Decision{State: StateUnauthenticated, Redirect: LoginPath}
	}
	if !u.Role.Satisfies(required) {
		return Decision{State: StateInsufficient, Redirect: DefaultPath}
	}
	return Decision{State: StateAuthorized}
}

// Gate tracks one view's state across session changes.
//
//	initializing -> unauthenticated | insufficient | authorized
//	authorized   -> unauthenticated (logout)
//
// unauthenticated and insufficient are terminal.
type Gate struct {
	required models.Role
	state    State
}

func NewGate(required models.Role) *Gate {
	return &Gate{required: required, state: StateInitializing}
}

func (g *Gate) State() State { return g.state }

// Observe evaluates the session and moves the gate to the resulting state.
// An illegal move leaves the gate where it was.
func (g *Gate) Observe(s *Session) (Decision, error) {
	d := Evaluate(s, g.required)
	if !canTransition(g.state, d.State) {
		return g.decision(), fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, g.state, d.State)
	}
	g.state = d.State
	return d, nil
}

func (g *Gate) decision() Decision {
	switch g.state {
	case StateUnauthenticated:
		return Decision{State: g.state, Redirect: LoginPath}
	case StateInsufficient:
		return Decision{State: g.state, Redirect: DefaultPath}
	}
	return Decision{State: g.state}
}

func canTransition(from, to State) bool {
	if from == to {
		return true
	}
	switch from {
	case StateInitializing:
		return true
	case StateAuthorized:
		return to == StateUnauthenticated
	}
	return false
}
