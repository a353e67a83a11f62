package database

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"

	"MaizeAIBackend/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// UserRepository defines operations on User entities.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
}

// DiseaseRepository reads the reference catalogue.
type DiseaseRepository interface {
	List(ctx context.Context) ([]models.Disease, error)
	GetByID(ctx context.Context, id string) (*models.Disease, error)
}

// ScanRepository stores scan results. Scans are never updated after creation.
type ScanRepository interface {
	Create(ctx context.Context, s *models.ScanResult) error
	GetByID(ctx context.Context, id string) (*models.ScanResult, error)
	ListByUser(ctx context.Context, userID string) ([]models.ScanResult, error)
}

// ApprovalRepository stores admin role requests.
type ApprovalRepository interface {
	Create(ctx context.Context, a *models.AdminApprovalRequest) error
	List(ctx context.Context) ([]models.AdminApprovalRequest, error)
	// Resolve applies the pending → approved|rejected transition and, on
	// approval, promotes the requesting user to the requested role.
	Resolve(ctx context.Context, id string, status models.ApprovalStatus, reviewerID string, at time.Time) (*models.AdminApprovalRequest, error)
}

type StatsRepository interface {
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
}

// uniqueViolation maps postgres unique constraint failures to ErrDuplicate.
func uniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
