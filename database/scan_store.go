package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"MaizeAIBackend/models"
)

type ScanStore struct {
	DB *sql.DB
}

func NewScanStore(conn *sql.DB) *ScanStore {
	return &ScanStore{DB: conn}
}

// scanSelect embeds the detected disease through a left join.
func scanSelect() sq.SelectBuilder {
	return psql.Select(
		"s.id", "s.user_id", "s.image_url", "s.image_path", "s.disease_id", "s.confidence",
		"s.location", "s.notes", "s.status", "s.created_at", "s.updated_at",
		"d.name", "d.scientific_name", "d.description", "d.risk_level",
		"d.symptoms", "d.treatment", "d.prevention", "d.images",
	).From("scans s").LeftJoin("diseases d ON d.id = s.disease_id")
}

func scanScanResult(row sq.RowScanner) (*models.ScanResult, error) {
	var s models.ScanResult
	var diseaseID, name, scientific, description, risk sql.NullString
	var symptoms, treatment, prevention, images pq.StringArray

	err := row.Scan(&s.ID, &s.UserID, &s.ImageURL, &s.ImagePath, &diseaseID, &s.Confidence,
		&s.Location, &s.Notes, &s.Status, &s.CreatedAt, &s.UpdatedAt,
		&name, &scientific, &description, &risk,
		&symptoms, &treatment, &prevention, &images)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if diseaseID.Valid && name.Valid {
		id := diseaseID.String
		s.DiseaseID = &id
		s.Disease = &models.Disease{
			ID:             id,
			Name:           name.String,
			ScientificName: scientific.String,
			Description:    description.String,
			RiskLevel:      models.RiskLevel(risk.String),
			Symptoms:       nonNil(symptoms),
			Treatment:      nonNil(treatment),
			Prevention:     nonNil(prevention),
			Images:         images,
		}
	} else {
		s.Confidence = 0
	}
	return &s, nil
}

func (st *ScanStore) Create(ctx context.Context, s *models.ScanResult) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query, args, err := scanInsertQuery(s).ToSql()
	if err != nil {
		return err
	}
	if _, err := st.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create scan: %w", uniqueViolation(err))
	}
	return nil
}

func scanInsertQuery(s *models.ScanResult) sq.InsertBuilder {
	return psql.Insert("scans").
		Columns("id", "user_id", "image_url", "image_path", "disease_id", "confidence",
			"location", "notes", "status", "created_at", "updated_at").
		Values(s.ID, s.UserID, s.ImageURL, s.ImagePath, s.DiseaseID, s.Confidence,
			s.Location, s.Notes, string(s.Status), s.CreatedAt, s.UpdatedAt)
}

func (st *ScanStore) GetByID(ctx context.Context, id string) (*models.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query, args, err := scanSelect().Where(sq.Eq{"s.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	s, err := scanScanResult(st.DB.QueryRowContext(ctx, query, args...))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return s, err
}

// ListByUser returns the user's scans, most recent first.
func (st *ScanStore) ListByUser(ctx context.Context, userID string) ([]models.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query, args, err := historyQuery(userID).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := st.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	scans := []models.ScanResult{}
	for rows.Next() {
		s, err := scanScanResult(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, *s)
	}
	return scans, rows.Err()
}

func historyQuery(userID string) sq.SelectBuilder {
	return scanSelect().Where(sq.Eq{"s.user_id": userID}).OrderBy("s.created_at DESC")
}
