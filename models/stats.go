package models

type DashboardStats struct {
	TotalUsers       int `json:"total_users"`
	Farmers          int `json:"farmers"`
	Admins           int `json:"admins"`
	TotalScans       int `json:"total_scans"`
	DiseasedScans    int `json:"diseased_scans"`
	PendingApprovals int `json:"pending_approvals"`
}
