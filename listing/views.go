package listing

import "MaizeAIBackend/models"

func DiseaseFields(d models.Disease) Fields {
	text := []string{d.Name, d.ScientificName, d.Description}
	text = append(text, d.Symptoms...)
	return Fields{Text: text, Exact: map[string]string{"risk": string(d.RiskLevel)}}
}

func ScanFields(s models.ScanResult) Fields {
	text := []string{s.Location, s.Notes}
	if s.Disease != nil {
		text = append(text, s.Disease.Name, s.Disease.ScientificName)
	}
	return Fields{Text: text, Exact: map[string]string{"status": string(s.Status)}}
}

func UserFields(u models.User) Fields {
	return Fields{Text: []string{u.Name, u.Email}, Exact: map[string]string{"role": string(u.Role)}}
}

func ApprovalFields(a models.AdminApprovalRequest) Fields {
	text := []string{a.Reason}
	if a.User != nil {
		text = append(text, a.User.Name, a.User.Email)
	}
	return Fields{Text: text, Exact: map[string]string{"status": string(a.Status)}}
}
