// Package auth creates accounts and checks credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"MaizeAIBackend/database"
	"MaizeAIBackend/models"
	"MaizeAIBackend/retry"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidSignup      = errors.New("invalid signup")
)

const minPasswordLength = 6

type Service struct {
	users  database.UserRepository
	policy retry.Policy
	log    *zap.Logger
	cost   int
}

// NewService wires the signup retry policy. Duplicate emails are never retried.
func NewService(users database.UserRepository, policy retry.Policy, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	policy.Name = "signup"
	policy.Logger = log
	policy.Retryable = func(err error) bool {
		return !errors.Is(err, database.ErrDuplicate)
	}
	return &Service{users: users, policy: policy, log: log, cost: bcrypt.DefaultCost}
}

func validateSignup(req models.UserSignup) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return fmt.Errorf("%w: name, email, and password are required", ErrInvalidSignup)
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return fmt.Errorf("%w: email address is not valid", ErrInvalidSignup)
	}
	if len(req.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidSignup, minPasswordLength)
	}
	return nil
}

// Signup registers a farmer account.
func (s *Service) Signup(ctx context.Context, req models.UserSignup) (*models.User, error) {
	if err := validateSignup(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := models.NewUser(req.Email, req.Name, string(hash), models.RoleFarmer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignup, err)
	}

	err = s.policy.Do(ctx, func(ctx context.Context) error {
		return s.users.Create(ctx, user)
	})
	if errors.Is(err, database.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		s.log.Error("signup failed", zap.String("email", user.Email), zap.Error(err))
		return nil, err
	}

	s.log.Info("user signed up", zap.String("user_id", user.ID))
	return user, nil
}

// Login checks the credentials. Unknown emails and wrong passwords give the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
