// Package testutil provides in-memory repositories for tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"MaizeAIBackend/database"
	"MaizeAIBackend/models"
)

// Users is an in-memory database.UserRepository. Set the *Err fields to
// simulate backend failures.
type Users struct {
	mu        sync.Mutex
	byID      map[string]models.User
	CreateErr error
	GetErr    error
	ListErr   error
	UpdateErr error
	Creates   int
}

func NewUsers(users ...models.User) *Users {
	u := &Users{byID: map[string]models.User{}}
	for _, x := range users {
		u.byID[x.ID] = x
	}
	return u
}

func (u *Users) Create(_ context.Context, user *models.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Creates++
	if u.CreateErr != nil {
		return u.CreateErr
	}
	for _, existing := range u.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return database.ErrDuplicate
		}
	}
	if _, ok := u.byID[user.ID]; ok {
		return database.ErrDuplicate
	}
	u.byID[user.ID] = *user
	return nil
}

func (u *Users) GetByID(_ context.Context, id string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.GetErr != nil {
		return nil, u.GetErr
	}
	user, ok := u.byID[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &user, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.GetErr != nil {
		return nil, u.GetErr
	}
	for _, user := range u.byID {
		if strings.EqualFold(user.Email, strings.TrimSpace(email)) {
			user := user
			return &user, nil
		}
	}
	return nil, database.ErrNotFound
}

func (u *Users) List(_ context.Context) ([]models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ListErr != nil {
		return nil, u.ListErr
	}
	out := make([]models.User, 0, len(u.byID))
	for _, user := range u.byID {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (u *Users) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.UpdateErr != nil {
		return nil, u.UpdateErr
	}
	user, ok := u.byID[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if upd.Name != nil {
		user.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.AvatarURL != nil {
		user.AvatarURL = *upd.AvatarURL
	}
	user.UpdatedAt = time.Now().UTC()
	u.byID[id] = user
	return &user, nil
}

func (u *Users) UpdateRole(_ context.Context, id string, role models.Role) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.UpdateErr != nil {
		return u.UpdateErr
	}
	user, ok := u.byID[id]
	if !ok {
		return database.ErrNotFound
	}
	user.Role = role
	u.byID[id] = user
	return nil
}

// Diseases is an in-memory database.DiseaseRepository.
type Diseases struct {
	Items   []models.Disease
	ListErr error
}

func (d *Diseases) List(context.Context) ([]models.Disease, error) {
	if d.ListErr != nil {
		return nil, d.ListErr
	}
	return append([]models.Disease(nil), d.Items...), nil
}

func (d *Diseases) GetByID(_ context.Context, id string) (*models.Disease, error) {
	for _, x := range d.Items {
		if x.ID == id {
			x := x
			return &x, nil
		}
	}
	return nil, database.ErrNotFound
}

// Scans is an in-memory database.ScanRepository.
type Scans struct {
	mu        sync.Mutex
	items     []models.ScanResult
	CreateErr error
	GetErr    error
	ListErr   error
	Creates   int
}

func NewScans(items ...models.ScanResult) *Scans {
	return &Scans{items: items}
}

func (s *Scans) Create(_ context.Context, scan *models.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Creates++
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.items = append(s.items, *scan)
	return nil
}

func (s *Scans) GetByID(_ context.Context, id string) (*models.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	for _, x := range s.items {
		if x.ID == id {
			x := x
			return &x, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Scans) ListByUser(_ context.Context, userID string) ([]models.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := []models.ScanResult{}
	for _, x := range s.items {
		if x.UserID == userID {
			out = append(out, x)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Approvals is an in-memory database.ApprovalRepository that promotes users
// in the paired Users store on approval.
type Approvals struct {
	mu         sync.Mutex
	items      []models.AdminApprovalRequest
	Users      *Users
	ListErr    error
	ResolveErr error
}

func NewApprovals(users *Users) *Approvals {
	return &Approvals{Users: users}
}

func (a *Approvals) Create(_ context.Context, req *models.AdminApprovalRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, x := range a.items {
		if x.UserID == req.UserID && x.Status == models.ApprovalPending {
			return database.ErrDuplicate
		}
	}
	a.items = append(a.items, *req)
	return nil
}

func (a *Approvals) List(ctx context.Context) ([]models.AdminApprovalRequest, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ListErr != nil {
		return nil, a.ListErr
	}
	out := make([]models.AdminApprovalRequest, 0, len(a.items))
	for i := len(a.items) - 1; i >= 0; i-- {
		x := a.items[i]
		if a.Users != nil {
			if u, err := a.Users.GetByID(ctx, x.UserID); err == nil {
				s := u.Summary()
				x.User = &s
			}
		}
		out = append(out, x)
	}
	return out, nil
}

func (a *Approvals) Resolve(ctx context.Context, id string, status models.ApprovalStatus, reviewerID string, at time.Time) (*models.AdminApprovalRequest, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ResolveErr != nil {
		return nil, a.ResolveErr
	}
	for i := range a.items {
		if a.items[i].ID != id {
			continue
		}
		x := a.items[i]
		if err := x.Resolve(status, reviewerID, at); err != nil {
			return nil, err
		}
		if x.Status == models.ApprovalApproved && a.Users != nil {
			if err := a.Users.UpdateRole(ctx, x.UserID, x.RequestedRole); err != nil {
				return nil, err
			}
		}
		a.items[i] = x
		return &x, nil
	}
	return nil, database.ErrNotFound
}

// Stats returns fixed dashboard numbers.
type Stats struct {
	Value models.DashboardStats
	Err   error
}

func (s *Stats) Dashboard(context.Context) (*models.DashboardStats, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	v := s.Value
	return &v, nil
}

var (
	_ database.UserRepository     = (*Users)(nil)
	_ database.DiseaseRepository  = (*Diseases)(nil)
	_ database.ScanRepository     = (*Scans)(nil)
	_ database.ApprovalRepository = (*Approvals)(nil)
	_ database.StatsRepository    = (*Stats)(nil)
)

// Catalogue is a small disease catalogue for tests.
func Catalogue() []models.Disease {
	return []models.Disease{
		{ID: "nlb", Name: "Northern Leaf Blight", ScientificName: "Exserohilum turcicum", RiskLevel: models.RiskHigh,
			Symptoms: []string{"Elliptical, gray-green lesions on leaves"}, Treatment: []string{"Apply fungicides"}, Prevention: []string{"Plant resistant varieties"}},
		{ID: "gls", Name: "Gray Leaf Spot", ScientificName: "Cercospora zeae-maydis", RiskLevel: models.RiskMedium,
			Symptoms: []string{"Rectangular lesions"}, Treatment: []string{"Apply foliar fungicides"}, Prevention: []string{"Use resistant hybrids"}},
		{ID: "cr", Name: "Common Rust", ScientificName: "Puccinia sorghi", RiskLevel: models.RiskLow,
			Symptoms: []string{"Reddish-brown pustules"}, Treatment: []string{"Remove volunteer corn plants"}, Prevention: []string{"Avoid late planting"}},
	}
}
