package models

import "time"

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

type Disease struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ScientificName string    `json:"scientific_name,omitempty"`
	Description    string    `json:"description,omitempty"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Symptoms       []string  `json:"symptoms"`
	Treatment      []string  `json:"treatment"`
	Prevention     []string  `json:"prevention"`
	Images         []string  `json:"images,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}
