package dto

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/m3connect/portal/internal/models"
)

type PartnerLeadRequest struct {
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Email           string  `json:"email"`
	Phone           *string `json:"phone"`
	Company         string  `json:"company"`
	Website         *string `json:"website"`
	Country         string  `json:"country"`
	ActorType       string  `json:"actor_type"`
	Solutions       *string `json:"solutions"`
	Goals           *string `json:"goals"`
	EngagementLevel string  `json:"engagement_level"`
	// Consent is the contact-consent checkbox; it is checked, not stored.
	Consent bool `json:"consent"`
}

func (r PartnerLeadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Company, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Country, validation.Required),
		validation.Field(&r.ActorType, validation.Required),
		validation.Field(&r.Website, is.URL),
		validation.Field(&r.Consent, validation.Required.Error("consent is required")),
	)
}

func (r PartnerLeadRequest) Lead() models.PartnerLead {
	return models.PartnerLead{
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Email:           r.Email,
		Phone:           r.Phone,
		Company:         r.Company,
		Website:         r.Website,
		Country:         r.Country,
		ActorType:       r.ActorType,
		Solutions:       r.Solutions,
		Goals:           r.Goals,
		EngagementLevel: r.EngagementLevel,
	}
}

type ProjectRequest struct {
	ProjectType string `json:"project_type"`
	BudgetRange string `json:"budget_range"`
	Timeline    string `json:"timeline"`
	Description string `json:"description"`
	Consent     bool   `json:"consent"`
}

func (r ProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProjectType, validation.Required),
		validation.Field(&r.BudgetRange, validation.Required),
		validation.Field(&r.Timeline, validation.Required),
		validation.Field(&r.Description, validation.Required, validation.Length(10, 5000)),
		validation.Field(&r.Consent, validation.Required.Error("consent is required")),
	)
}

func (r ProjectRequest) Project(userID string) models.ProjectSubmission {
	return models.ProjectSubmission{
		UserID:      userID,
		ProjectType: r.ProjectType,
		BudgetRange: r.BudgetRange,
		Timeline:    r.Timeline,
		Description: r.Description,
	}
}
