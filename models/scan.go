package models

import (
	"time"

	"github.com/google/uuid"
)

type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

type ScanResult struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ImageURL   string     `json:"image_url"`
	ImagePath  string     `json:"-"`
	DiseaseID  *string    `json:"disease_id,omitempty"`
	Disease    *Disease   `json:"disease,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Location   string     `json:"location,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Status     ScanStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (s ScanResult) HasDisease() bool {
	return s.Disease != nil
}

// NewScanResult builds a record for an uploaded image. Confidence is kept
// only when a disease is attached.
func NewScanResult(userID, imageURL, imagePath string, disease *Disease, confidence float64, location, notes string, status ScanStatus, now time.Time) *ScanResult {
	s := &ScanResult{
		ID:        uuid.New().String(),
		UserID:    userID,
		ImageURL:  imageURL,
		ImagePath: imagePath,
		Location:  location,
		Notes:     notes,
		Status:    status,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if disease != nil {
		d := *disease
		s.Disease = &d
		s.DiseaseID = &d.ID
		s.Confidence = confidence
	}
	return s
}
