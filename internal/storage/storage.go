package storage

import (
	"context"
	"errors"

	"github.com/m3connect/portal/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ProfileStore captures the profile operations the session controller and the
// admin surface need. Profiles are always addressed by the owning user id.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (models.Profile, error)
	Create(ctx context.Context, profile models.Profile) (models.Profile, error)
	UpdateByUserID(ctx context.Context, userID string, update models.ProfileUpdate) (models.Profile, error)
	Moderate(ctx context.Context, userID string, change models.Moderation) (models.Profile, error)
	List(ctx context.Context, filter ProfileFilter) ([]models.Profile, error)
}

// ProfileFilter narrows an admin listing. Zero fields match everything.
type ProfileFilter struct {
	// Query matches name, e-mail or organization name, case-insensitively.
	Query  string
	Role   *models.Role
	Status *models.Status
	Limit  int
}

// ResourceFilter narrows the resource library. Only published resources are listed.
type ResourceFilter struct {
	Type     string
	Topic    string
	Language string
	Access   *models.AccessLevel
}

// EventFilter narrows the event calendar.
type EventFilter struct {
	Language string
	Access   *models.AccessLevel
	// Upcoming selects future events (ascending) when true, past events
	// (descending) when false, and everything when nil.
	Upcoming *bool
}

// ContentStore is the read side of the content catalogue.
type ContentStore interface {
	ListResources(ctx context.Context, filter ResourceFilter) ([]models.Resource, error)
	GetResource(ctx context.Context, id string) (models.Resource, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, error)
	GetEvent(ctx context.Context, id string) (models.Event, error)
	ListPartners(ctx context.Context) ([]models.Partner, error)
}

// LeadStore persists inbound partnership inquiries and project submissions.
type LeadStore interface {
	CreatePartnerLead(ctx context.Context, lead models.PartnerLead) (models.PartnerLead, error)
	ListPartnerLeads(ctx context.Context, status string) ([]models.PartnerLead, error)
	CreateProject(ctx context.Context, project models.ProjectSubmission) (models.ProjectSubmission, error)
	// ListProjects returns the submissions of userID, or every submission when userID is empty.
	ListProjects(ctx context.Context, userID string) ([]models.ProjectSubmission, error)
}
