package models

import (
	"slices"
	"time"
)

// Profile is the application-facing record attached one-to-one to a credential.
type Profile struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	FirstName            string     `json:"first_name"`
	LastName             string     `json:"last_name"`
	Email                string     `json:"email"`
	JobTitle             *string    `json:"job_title"`
	Phone                *string    `json:"phone"`
	LinkedInURL          *string    `json:"linkedin_url"`
	Bio                  *string    `json:"bio"`
	AvatarURL            *string    `json:"avatar_url"`
	OrganizationType     string     `json:"organization_type"`
	OrganizationName     string     `json:"organization_name"`
	Country              string     `json:"country"`
	Website              *string    `json:"website"`
	Capacity             *string    `json:"capacity"`
	Role                 Role       `json:"role"`
	Status               Status     `json:"status"`
	PartnershipTier      *string    `json:"partnership_tier"`
	PartnershipStartsAt  *time.Time `json:"partnership_starts_at"`
	PartnershipExpiresAt *time.Time `json:"partnership_expires_at"`
	SolutionCategories   []string   `json:"solution_categories"`
	CompanyLogo          *string    `json:"company_logo"`
	CompanyDescription   *string    `json:"company_description"`
	IsPublic             bool       `json:"is_public"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Clone returns a copy that shares no mutable state with p.
func (p Profile) Clone() Profile {
	out := p
	out.SolutionCategories = slices.Clone(p.SolutionCategories)
	out.JobTitle = cloneString(p.JobTitle)
	out.Phone = cloneString(p.Phone)
	out.LinkedInURL = cloneString(p.LinkedInURL)
	out.Bio = cloneString(p.Bio)
	out.AvatarURL = cloneString(p.AvatarURL)
	out.Website = cloneString(p.Website)
	out.Capacity = cloneString(p.Capacity)
	out.PartnershipTier = cloneString(p.PartnershipTier)
	out.CompanyLogo = cloneString(p.CompanyLogo)
	out.CompanyDescription = cloneString(p.CompanyDescription)
	if p.PartnershipStartsAt != nil {
		t := *p.PartnershipStartsAt
		out.PartnershipStartsAt = &t
	}
	if p.PartnershipExpiresAt != nil {
		t := *p.PartnershipExpiresAt
		out.PartnershipExpiresAt = &t
	}
	return out
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// ProfileFields is the sign-up payload. Role and Status are accepted so that
// callers can round-trip a form, but account creation always overrides them.
type ProfileFields struct {
	FirstName        string
	LastName         string
	JobTitle         string
	OrganizationType string
	OrganizationName string
	Country          string
	Website          string
	Capacity         string
	Role             Role
	Status           Status
}

// ProfileUpdate is a partial self-service update. Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName        *string `json:"first_name,omitempty"`
	LastName         *string `json:"last_name,omitempty"`
	JobTitle         *string `json:"job_title,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	LinkedInURL      *string `json:"linkedin_url,omitempty"`
	Bio              *string `json:"bio,omitempty"`
	AvatarURL        *string `json:"avatar_url,omitempty"`
	OrganizationName *string `json:"organization_name,omitempty"`
	Country          *string `json:"country,omitempty"`
	Website          *string `json:"website,omitempty"`
	Capacity         *string `json:"capacity,omitempty"`
}

// Columns returns the column/value pairs set on the update, in a stable order.
func (u ProfileUpdate) Columns() ([]string, []any) {
	var cols []string
	var vals []any
	add := func(col string, v *string) {
		if v != nil {
			cols = append(cols, col)
			vals = append(vals, *v)
		}
	}
	add("first_name", u.FirstName)
	add("last_name", u.LastName)
	add("job_title", u.JobTitle)
	add("phone", u.Phone)
	add("linkedin_url", u.LinkedInURL)
	add("bio", u.Bio)
	add("avatar_url", u.AvatarURL)
	add("organization_name", u.OrganizationName)
	add("country", u.Country)
	add("website", u.Website)
	add("capacity", u.Capacity)
	return cols, vals
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	cols, _ := u.Columns()
	return len(cols) == 0
}

// Moderation is an administrator's change to a profile's role and/or status.
type Moderation struct {
	Role   *Role   `json:"role,omitempty"`
	Status *Status `json:"status,omitempty"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
