package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

var (
	ErrAlreadyResolved   = errors.New("approval request already resolved")
	ErrInvalidResolution = errors.New("approval status must be approved or rejected")
	ErrReasonRequired    = errors.New("a reason is required")
)

type AdminApprovalRequest struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	User          *UserSummary   `json:"user,omitempty"`
	RequestedRole Role           `json:"requested_role"`
	Reason        string         `json:"reason"`
	Status        ApprovalStatus `json:"status"`
	ReviewedBy    *string        `json:"approved_by,omitempty"`
	ReviewedAt    *time.Time     `json:"approved_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func NewApprovalRequest(userID, reason string) (*AdminApprovalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return &AdminApprovalRequest{
		ID:            uuid.New().String(),
		UserID:        userID,
		RequestedRole: RoleAdmin,
		Reason:        reason,
		Status:        ApprovalPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Resolve moves a pending request to approved or rejected. It succeeds at most once.
func (a *AdminApprovalRequest) Resolve(status ApprovalStatus, reviewerID string, at time.Time) error {
	if status != ApprovalApproved && status != ApprovalRejected {
		return ErrInvalidResolution
	}
	if a.Status != ApprovalPending {
		return ErrAlreadyResolved
	}
	at = at.UTC()
	a.Status = status
	a.ReviewedBy = &reviewerID
	a.ReviewedAt = &at
	return nil
}
