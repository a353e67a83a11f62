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

var diseaseColumns = []string{"id", "name", "scientific_name", "description", "risk_level", "symptoms", "treatment", "prevention", "images", "created_at"}

// riskOrder sorts the catalogue from the most to the least dangerous disease.
const riskOrder = "CASE risk_level WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END"

type DiseaseStore struct {
	DB *sql.DB
}

func NewDiseaseStore(conn *sql.DB) *DiseaseStore {
	return &DiseaseStore{DB: conn}
}

func scanDisease(row sq.RowScanner) (*models.Disease, error) {
	var d models.Disease
	var symptoms, treatment, prevention, images pq.StringArray
	err := row.Scan(&d.ID, &d.Name, &d.ScientificName, &d.Description, &d.RiskLevel,
		&symptoms, &treatment, &prevention, &images, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	d.Symptoms = nonNil(symptoms)
	d.Treatment = nonNil(treatment)
	d.Prevention = nonNil(prevention)
	d.Images = images
	return &d, nil
}

func (s *DiseaseStore) List(ctx context.Context) ([]models.Disease, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query, args, err := psql.Select(diseaseColumns...).From("diseases").OrderBy(riskOrder, "name").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list diseases: %w", err)
	}
	defer rows.Close()

	diseases := []models.Disease{}
	for rows.Next() {
		d, err := scanDisease(rows)
		if err != nil {
			return nil, err
		}
		diseases = append(diseases, *d)
	}
	return diseases, rows.Err()
}

func (s *DiseaseStore) GetByID(ctx context.Context, id string) (*models.Disease, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query, args, err := psql.Select(diseaseColumns...).From("diseases").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	d, err := scanDisease(s.DB.QueryRowContext(ctx, query, args...))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get disease: %w", err)
	}
	return d, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
