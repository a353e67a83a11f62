package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"MaizeAIBackend/models"
)

type ApprovalStore struct {
	DB *sql.DB
}

func NewApprovalStore(conn *sql.DB) *ApprovalStore {
	return &ApprovalStore{DB: conn}
}

// approvalSelect embeds the requesting user's summary.
func approvalSelect() sq.SelectBuilder {
	return psql.Select(
		"a.id", "a.user_id", "a.requested_role", "a.reason", "a.status", "a.approved_by", "a.approved_at", "a.created_at",
		"u.email", "u.name",
	).From("admin_approvals a").LeftJoin("users u ON u.id = a.user_id")
}

func scanApproval(row sq.RowScanner) (*models.AdminApprovalRequest, error) {
	var a models.AdminApprovalRequest
	var approvedBy, email, name sql.NullString
	var approvedAt sql.NullTime

	err := row.Scan(&a.ID, &a.UserID, &a.RequestedRole, &a.Reason, &a.Status, &approvedBy, &approvedAt, &a.CreatedAt,
		&email, &name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if approvedBy.Valid {
		a.ReviewedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		t := approvedAt.Time.UTC()
		a.ReviewedAt = &t
	}
	if email.Valid {
		a.User = &models.UserSummary{ID: a.UserID, Email: email.String, Name: name.String}
	}
	return &a, nil
}

func (s *ApprovalStore) Create(ctx context.Context, a *models.AdminApprovalRequest) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query, args, err := psql.Insert("admin_approvals").
		Columns("id", "user_id", "requested_role", "reason", "status", "created_at").
		Values(a.ID, a.UserID, string(a.RequestedRole), a.Reason, string(a.Status), a.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create approval request: %w", uniqueViolation(err))
	}
	return nil
}

// List returns all requests, newest first.
func (s *ApprovalStore) List(ctx context.Context) ([]models.AdminApprovalRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query, args, err := approvalSelect().OrderBy("a.created_at DESC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approval requests: %w", err)
	}
	defer rows.Close()

	out := []models.AdminApprovalRequest{}
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *ApprovalStore) Resolve(ctx context.Context, id string, status models.ApprovalStatus, reviewerID string, at time.Time) (*models.AdminApprovalRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query, args, err := approvalSelect().Where(sq.Eq{"a.id": id}).Suffix("FOR UPDATE OF a").ToSql()
	if err != nil {
		return nil, err
	}
	a, err := scanApproval(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load approval request: %w", err)
	}

	if err := a.Resolve(status, reviewerID, at); err != nil {
		return nil, err
	}

	query, args, err = resolveQuery(a).ToSql()
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update approval request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, models.ErrAlreadyResolved
	}

	if a.Status == models.ApprovalApproved {
		query, args, err = psql.Update("users").
			Set("role", string(a.RequestedRole)).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": a.UserID}).
			ToSql()
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("promote user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

// resolveQuery only matches a still-pending row.
func resolveQuery(a *models.AdminApprovalRequest) sq.UpdateBuilder {
	return psql.Update("admin_approvals").
		Set("status", string(a.Status)).
		Set("approved_by", a.ReviewedBy).
		Set("approved_at", a.ReviewedAt).
		Where(sq.Eq{"id": a.ID, "status": string(models.ApprovalPending)})
}
