package database

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"MaizeAIBackend/models"
)

// Embedded so seeding works regardless of the working directory.
//
//go:embed diseases.json
var embeddedDiseasesJSON []byte

type diseaseCatalogue struct {
	Diseases []models.Disease `json:"diseases"`
}

func loadDiseaseCatalogue() ([]models.Disease, error) {
	if len(embeddedDiseasesJSON) == 0 {
		return nil, fmt.Errorf("embedded diseases.json is empty - build error")
	}
	var c diseaseCatalogue
	if err := json.Unmarshal(embeddedDiseasesJSON, &c); err != nil {
		return nil, fmt.Errorf("failed to parse diseases.json: %w", err)
	}
	for _, d := range c.Diseases {
		if d.ID == "" || d.Name == "" || !d.RiskLevel.Valid() {
			return nil, fmt.Errorf("invalid catalogue entry %q", d.ID)
		}
	}
	return c.Diseases, nil
}

// SeedDiseases inserts the embedded catalogue, leaving existing rows untouched.
func SeedDiseases(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	diseases, err := loadDiseaseCatalogue()
	if err != nil {
		return err
	}

	inserted := 0
	for _, d := range diseases {
		query, args, err := psql.Insert("diseases").
			Columns("id", "name", "scientific_name", "description", "risk_level", "symptoms", "treatment", "prevention", "images").
			Values(d.ID, d.Name, d.ScientificName, d.Description, string(d.RiskLevel),
				pq.Array(nonNil(d.Symptoms)), pq.Array(nonNil(d.Treatment)), pq.Array(nonNil(d.Prevention)), pq.Array(nonNil(d.Images))).
			Suffix("ON CONFLICT (id) DO NOTHING").
			ToSql()
		if err != nil {
			return err
		}
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to seed disease '%s': %w", d.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if inserted > 0 {
		log.Info("seeded disease catalogue", zap.Int("inserted", inserted))
	}
	return nil
}
