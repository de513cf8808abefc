package models

import "time"

const (
	LeadNew          = "new"
	LeadQualified    = "qualified"
	LeadInDiscussion = "in_discussion"
	LeadSigned       = "signed"
	LeadRejected     = "rejected"
)

const (
	ProjectNew        = "new"
	ProjectInProgress = "in_progress"
	ProjectCompleted  = "completed"
)

// PartnerLead is a partnership inquiry captured from the public form.
type PartnerLead struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email"`
	Phone           *string   `json:"phone"`
	Company         string    `json:"company"`
	Website         *string   `json:"website"`
	Country         string    `json:"country"`
	ActorType       string    `json:"actor_type"`
	Solutions       *string   `json:"solutions"`
	Goals           *string   `json:"goals"`
	EngagementLevel string    `json:"engagement_level"`
	Status          string    `json:"status"`
	AdminNotes      *string   `json:"admin_notes"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProjectSubmission is a project brief sent by a verified marina operator.
type ProjectSubmission struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProjectType string    `json:"project_type"`
	BudgetRange string    `json:"budget_range"`
	Timeline    string    `json:"timeline"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	AdminNotes  *string   `json:"admin_notes"`
	CreatedAt   time.Time `json:"created_at"`
}
