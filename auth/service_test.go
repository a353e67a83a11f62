package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"golang.org/x/crypto/bcrypt"

	"MaizeAIBackend/models"
	"MaizeAIBackend/retry"
	"MaizeAIBackend/testutil"
)

type recordingClock struct {
	slept []time.Duration
}

func (c *recordingClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	return nil
}

// flakyUsers fails the first n creates.
type flakyUsers struct {
	*testutil.Users
	failures int
	calls    int
}

func (f *flakyUsers) Create(ctx context.Context, u *models.User) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("network error")
	}
	return f.Users.Create(ctx, u)
}

func newService(t *testing.T, users *flakyUsers, clock *recordingClock) *Service {
	t.Helper()
	policy := retry.LinearPolicy(3, time.Second)
	policy.Clock = clock
	s := NewService(users, policy, nil)
	s.cost = bcrypt.MinCost
	return s
}

var signup = models.UserSignup{Email: "Farmer@Example.com", Password: "secret1", Name: "Amina"}

func TestSignupExhaustsAfterThreeFailures(t *testing.T) {
	users := &flakyUsers{Users: testutil.NewUsers(), failures: 3}
	clock := &recordingClock{}

	_, err := newService(t, users, clock).Signup(context.Background(), signup)

	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Len(t, multierr.Errors(exhausted.Err), 3)
	assert.Equal(t, 3, users.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.slept)
}

func TestSignupSucceedsOnSecondAttempt(t *testing.T) {
	users := &flakyUsers{Users: testutil.NewUsers(), failures: 1}
	clock := &recordingClock{}

	u, err := newService(t, users, clock).Signup(context.Background(), signup)
	require.NoError(t, err)
	assert.Equal(t, 2, users.calls)
	assert.Equal(t, []time.Duration{time.Second}, clock.slept)

	assert.Equal(t, "farmer@example.com", u.Email)
	assert.Equal(t, models.RoleFarmer, u.Role)
	assert.NotEqual(t, signup.Password, u.PasswordHash)
}

func TestSignupDuplicateIsNotRetried(t *testing.T) {
	existing := models.User{ID: "u-1", Email: "farmer@example.com", Name: "Old", Role: models.RoleFarmer}
	users := &flakyUsers{Users: testutil.NewUsers(existing)}
	clock := &recordingClock{}

	_, err := newService(t, users, clock).Signup(context.Background(), signup)
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, 1, users.calls)
	assert.Empty(t, clock.slept)
}

func TestSignupValidation(t *testing.T) {
	cases := map[string]models.UserSignup{
		"missing name":   {Email: "a@b.co", Password: "secret1"},
		"bad email":      {Email: "not-an-email", Password: "secret1", Name: "A"},
		"short password": {Email: "a@b.co", Password: "abc", Name: "A"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			users := &flakyUsers{Users: testutil.NewUsers()}
			_, err := newService(t, users, &recordingClock{}).Signup(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidSignup)
			assert.Zero(t, users.calls)
		})
	}
}

func TestLogin(t *testing.T) {
	users := &flakyUsers{Users: testutil.NewUsers()}
	svc := newService(t, users, &recordingClock{})
	_, err := svc.Signup(context.Background(), signup)
	require.NoError(t, err)

	u, err := svc.Login(context.Background(), "farmer@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Amina", u.Name)

	_, err = svc.Login(context.Background(), "farmer@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginBackendError(t *testing.T) {
	users := &flakyUsers{Users: testutil.NewUsers()}
	users.GetErr = errors.New("db down")
	_, err := newService(t, users, &recordingClock{}).Login(context.Background(), "a@b.co", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
