// Package memory implements the storage interfaces in process memory. It backs
// the server in local identity mode when no database is configured, and the
// package tests elsewhere in the module.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/storage"
)

var (
	_ storage.ProfileStore = (*Store)(nil)
	_ storage.ContentStore = (*Store)(nil)
	_ storage.LeadStore    = (*Store)(nil)
)

// Store holds every collection behind one mutex.
type Store struct {
	now func() time.Time

	mu        sync.RWMutex
	profiles  map[string]models.Profile
	resources []models.Resource
	events    []models.Event
	partners  []models.Partner
	leads     []models.PartnerLead
	projects  []models.ProjectSubmission
}

// New returns an empty store.
func New() *Store {
	return &Store{now: time.Now, profiles: make(map[string]models.Profile)}
}

// GetByUserID fetches the profile owned by userID.
func (s *Store) GetByUserID(_ context.Context, userID string) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// Create inserts p; a second profile for the same user is rejected.
func (s *Store) Create(_ context.Context, p models.Profile) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.UserID]; exists {
		return models.Profile{}, storage.ErrAlreadyExists
	}
	now := s.now()
	p = p.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	s.profiles[p.UserID] = p
	return p.Clone(), nil
}

// UpdateByUserID applies the non-nil fields of u.
func (s *Store) UpdateByUserID(_ context.Context, userID string, u models.ProfileUpdate) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, storage.ErrNotFound
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setOpt := func(dst **string, v *string) {
		if v != nil {
			val := *v
			*dst = &val
		}
	}
	set(&p.FirstName, u.FirstName)
	set(&p.LastName, u.LastName)
	setOpt(&p.JobTitle, u.JobTitle)
	setOpt(&p.Phone, u.Phone)
	setOpt(&p.LinkedInURL, u.LinkedInURL)
	setOpt(&p.Bio, u.Bio)
	setOpt(&p.AvatarURL, u.AvatarURL)
	set(&p.OrganizationName, u.OrganizationName)
	set(&p.Country, u.Country)
	setOpt(&p.Website, u.Website)
	setOpt(&p.Capacity, u.Capacity)
	if !u.Empty() {
		p.UpdatedAt = s.now()
	}
	s.profiles[userID] = p
	return p.Clone(), nil
}

// Moderate changes role and/or status.
func (s *Store) Moderate(_ context.Context, userID string, change models.Moderation) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, storage.ErrNotFound
	}
	if change.Role != nil {
		p.Role = *change.Role
	}
	if change.Status != nil {
		p.Status = *change.Status
	}
	p.UpdatedAt = s.now()
	s.profiles[userID] = p
	return p.Clone(), nil
}

// List returns matching profiles, newest first.
func (s *Store) List(_ context.Context, f storage.ProfileFilter) ([]models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(f.Query))
	var out []models.Profile
	for _, p := range s.profiles {
		if f.Role != nil && p.Role != *f.Role {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		if q != "" && !containsAny(q, p.FullName(), p.Email, p.OrganizationName) {
			continue
		}
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b models.Profile) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func containsAny(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Seed loads content fixtures, replacing what was there.
func (s *Store) Seed(resources []models.Resource, events []models.Event, partners []models.Partner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = slices.Clone(resources)
	s.events = slices.Clone(events)
	s.partners = slices.Clone(partners)
}

func (s *Store) ListResources(_ context.Context, f storage.ResourceFilter) ([]models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Resource
	for _, r := range s.resources {
		switch {
		case !r.Published,
			f.Type != "" && r.Type != f.Type,
			f.Topic != "" && r.Topic != f.Topic,
			f.Language != "" && r.Language != f.Language,
			f.Access != nil && r.AccessLevel != *f.Access:
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b models.Resource) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *Store) GetResource(_ context.Context, id string) (models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.resources {
		if r.ID == id && r.Published {
			return r, nil
		}
	}
	return models.Resource{}, storage.ErrNotFound
}

func (s *Store) ListEvents(_ context.Context, f storage.EventFilter) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []models.Event
	for _, e := range s.events {
		switch {
		case f.Language != "" && e.Language != f.Language,
			f.Access != nil && e.AccessLevel != *f.Access,
			f.Upcoming != nil && e.Upcoming(now) != *f.Upcoming:
			continue
		}
		out = append(out, e)
	}
	past := f.Upcoming != nil && !*f.Upcoming
	slices.SortStableFunc(out, func(a, b models.Event) int {
		if past {
			return b.DateTime.Compare(a.DateTime)
		}
		return a.DateTime.Compare(b.DateTime)
	})
	return out, nil
}

func (s *Store) GetEvent(_ context.Context, id string) (models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.ID == id {
			return e, nil
		}
	}
	return models.Event{}, storage.ErrNotFound
}

func (s *Store) ListPartners(_ context.Context) ([]models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.partners)
	slices.SortStableFunc(out, func(a, b models.Partner) int {
		if a.IsFeatured != b.IsFeatured {
			if a.IsFeatured {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) CreatePartnerLead(_ context.Context, lead models.PartnerLead) (models.PartnerLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = models.LeadNew
	}
	lead.CreatedAt = s.now()
	s.leads = append(s.leads, lead)
	return lead, nil
}

func (s *Store) ListPartnerLeads(_ context.Context, status string) ([]models.PartnerLead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PartnerLead
	for i := len(s.leads) - 1; i >= 0; i-- {
		if status == "" || s.leads[i].Status == status {
			out = append(out, s.leads[i])
		}
	}
	return out, nil
}

func (s *Store) CreateProject(_ context.Context, p models.ProjectSubmission) (models.ProjectSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.ProjectNew
	}
	p.CreatedAt = s.now()
	s.projects = append(s.projects, p)
	return p, nil
}

func (s *Store) ListProjects(_ context.Context, userID string) ([]models.ProjectSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ProjectSubmission
	for i := len(s.projects) - 1; i >= 0; i-- {
		if userID == "" || s.projects[i].UserID == userID {
			out = append(out, s.projects[i])
		}
	}
	return out, nil
}
