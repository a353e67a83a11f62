package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"MaizeAIBackend/models"
)

var userColumns = []string{"id", "email", "password_hash", "name", "role", "avatar_url", "created_at", "updated_at"}

type UserStore struct {
	DB *sql.DB
}

func NewUserStore(conn *sql.DB) *UserStore {
	return &UserStore{DB: conn}
}

func scanUser(row sq.RowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(u.ID, u.Email, u.PasswordHash, u.Name, string(u.Role), u.AvatarURL, u.CreatedAt, u.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create user: %w", uniqueViolation(err))
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.getOne(ctx, sq.Eq{"id": id})
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, sq.Expr("LOWER(email) = LOWER(?)", strings.TrimSpace(email)))
}

func (s *UserStore) getOne(ctx context.Context, where sq.Sqlizer) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query, args, err := psql.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, args...))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, err
}

func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query, args, err := psql.Select(userColumns...).From("users").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	if upd.Empty() {
		return nil, errors.New("no fields to update")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query, args, err := profileUpdateQuery(id, upd).ToSql()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, args...))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, err
}

func profileUpdateQuery(id string, upd models.ProfileUpdate) sq.UpdateBuilder {
	b := psql.Update("users")
	if upd.Name != nil {
		b = b.Set("name", strings.TrimSpace(*upd.Name))
	}
	if upd.AvatarURL != nil {
		b = b.Set("avatar_url", *upd.AvatarURL)
	}
	return b.Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(userColumns, ", "))
}

func (s *UserStore) UpdateRole(ctx context.Context, id string, role models.Role) error {
	if !role.Valid() {
		return models.ErrInvalidRole
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query, args, err := psql.Update("users").
		Set("role", string(role)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
