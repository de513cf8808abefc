package dto

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/m3connect/portal/internal/models"
)

type UpdateProfileRequest struct {
	models.ProfileUpdate
}

func (r UpdateProfileRequest) Validate() error {
	u := r.ProfileUpdate
	return validation.ValidateStruct(&u,
		validation.Field(&u.FirstName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&u.LastName, validation.Length(0, 200)),
		validation.Field(&u.Bio, validation.Length(0, 2000)),
		validation.Field(&u.LinkedInURL, is.URL),
		validation.Field(&u.Website, is.URL),
		validation.Field(&u.AvatarURL, is.URL),
	)
}

type ModerateRequest struct {
	Role   *string `json:"role"`
	Status *string `json:"status"`
}

func (r ModerateRequest) Validate() error {
	roles := make([]any, 0, len(models.Roles))
	for _, role := range models.Roles {
		roles = append(roles, string(role))
	}
	statuses := make([]any, 0, len(models.Statuses))
	for _, s := range models.Statuses {
		statuses = append(statuses, string(s))
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.NilOrNotEmpty, validation.In(roles...)),
		validation.Field(&r.Status, validation.NilOrNotEmpty, validation.In(statuses...)),
	)
}

// Moderation converts a validated request.
func (r ModerateRequest) Moderation() models.Moderation {
	var m models.Moderation
	if r.Role != nil {
		role, _ := models.ParseRole(*r.Role)
		m.Role = &role
	}
	if r.Status != nil {
		status, _ := models.ParseStatus(*r.Status)
		m.Status = &status
	}
	return m
}
