package database

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/sync/errgroup"

	"MaizeAIBackend/models"
)

type StatsStore struct {
	DB *sql.DB
}

func NewStatsStore(conn *sql.DB) *StatsStore {
	return &StatsStore{DB: conn}
}

type countQuery struct {
	dest  *int
	query sq.SelectBuilder
}

func dashboardQueries(stats *models.DashboardStats) []countQuery {
	count := func(table string) sq.SelectBuilder { return psql.Select("COUNT(*)").From(table) }
	return []countQuery{
		{&stats.TotalUsers, count("users")},
		{&stats.Farmers, count("users").Where(sq.Eq{"role": string(models.RoleFarmer)})},
		{&stats.Admins, count("users").Where(sq.Eq{"role": string(models.RoleAdmin)})},
		{&stats.TotalScans, count("scans")},
		{&stats.DiseasedScans, count("scans").Where(sq.NotEq{"disease_id": nil})},
		{&stats.PendingApprovals, count("admin_approvals").Where(sq.Eq{"status": string(models.ApprovalPending)})},
	}
}

// Dashboard runs the admin dashboard counts concurrently.
func (s *StatsStore) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stats := &models.DashboardStats{}
	g, ctx := errgroup.WithContext(ctx)
	for _, q := range dashboardQueries(stats) {
		q := q
		g.Go(func() error {
			query, args, err := q.query.ToSql()
			if err != nil {
				return err
			}
			return s.DB.QueryRowContext(ctx, query, args...).Scan(q.dest)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
