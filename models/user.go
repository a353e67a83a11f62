package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleFarmer Role = "farmer"
	RoleAdmin  Role = "admin"
)

// RoleNone marks a route that only requires an authenticated session.
const RoleNone Role = ""

var ErrInvalidRole = errors.New("invalid role")

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleFarmer, RoleAdmin:
		return true
	}
	return false
}

// Satisfies reports whether a session holding r may access a view that
// requires the given role. Admin satisfies everything, farmer satisfies
// farmer and user views, user satisfies only unrestricted views.
func (r Role) Satisfies(required Role) bool {
	if !r.Valid() {
		return false
	}
	switch required {
	case RoleNone, RoleUser:
		return true
	case RoleFarmer:
		return r == RoleFarmer || r == RoleAdmin
	case RoleAdmin:
		return r == RoleAdmin
	}
	return false
}

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	Role         Role      `json:"role" db:"role"`
	AvatarURL    string    `json:"avatar_url,omitempty" db:"avatar_url"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UserSummary is the subset of a user embedded in approval requests.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Name: u.Name}
}

type UserLogin struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserSignup struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// ProfileUpdate carries the user-editable profile fields. Nil fields are left alone.
type ProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.AvatarURL == nil
}

const (
	FallbackEmail = "unknown@example.com"
	FallbackName  = "User"
)

func NewUser(email, name, passwordHash string, role Role) (*User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" || passwordHash == "" {
		return nil, errors.New("invalid user details: email, name, and password are required")
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	now := time.Now().UTC()
	return &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// FallbackUser builds the minimal record used when a profile cannot be
// fetched or created, so that a session still resolves.
func FallbackUser(id, email string, role Role) User {
	if email == "" {
		email = FallbackEmail
	}
	if !role.Valid() {
		role = RoleFarmer
	}
	return User{
		ID:    id,
		Email: email,
		Name:  FallbackName,
		Role:  role,
	}
}
