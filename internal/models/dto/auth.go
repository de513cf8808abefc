package dto

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/m3connect/portal/internal/access"
	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/recovery"
	"github.com/m3connect/portal/internal/session"
)

type BootstrapRequest struct {
	Href string `json:"href"`
}

func (r BootstrapRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Href, validation.Required, validation.Length(1, 4096)),
	)
}

type SignUpRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	JobTitle         string `json:"job_title"`
	OrganizationType string `json:"organization_type"`
	OrganizationName string `json:"organization_name"`
	Country          string `json:"country"`
	Website          string `json:"website"`
	Capacity         string `json:"capacity"`
	// Role and Status are accepted and ignored.
	Role   string `json:"role"`
	Status string `json:"status"`
}

func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.By(maxBytes(72))),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.OrganizationName, validation.Length(0, 200)),
		validation.Field(&r.Website, is.URL),
	)
}

// maxBytes bounds a string by its encoded size. validation.Length counts runes.
func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); len(s) > n {
			return fmt.Errorf("the length must be no more than %d bytes", n)
		}
		return nil
	}
}

// Fields converts the request into sign-up profile fields.
func (r SignUpRequest) Fields() models.ProfileFields {
	role, _ := models.ParseRole(r.Role)
	status, _ := models.ParseStatus(r.Status)
	return models.ProfileFields{
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		JobTitle:         r.JobTitle,
		OrganizationType: r.OrganizationType,
		OrganizationName: r.OrganizationName,
		Country:          r.Country,
		Website:          r.Website,
		Capacity:         r.Capacity,
		Role:             role,
		Status:           status,
	}
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type RecoverRequest struct {
	Email string `json:"email"`
}

func (r RecoverRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type NewPasswordRequest struct {
	Password string `json:"password"`
	Confirm  string `json:"confirm_password"`
}

// SessionResponse is the identity state a render needs. Permissions are
// derived from the profile on every response.
type SessionResponse struct {
	AuthReady bool `json:"auth_ready"`
	// SignedIn follows the credential, not the profile.
	SignedIn bool            `json:"signed_in"`
	User     *UserResponse   `json:"user"`
	Profile  *models.Profile `json:"profile"`
	// ProfileMissing is set for a signed-in user whose profile row was not
	// found once loading finished, as after a partial sign-up.
	ProfileMissing bool               `json:"profile_missing"`
	ProfileLoading bool               `json:"profile_loading"`
	Permissions    access.Permissions `json:"permissions"`
	Version        uint64             `json:"version"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// NewSessionResponse renders a controller snapshot. Tokens never leave the server.
func NewSessionResponse(s session.Snapshot) SessionResponse {
	out := SessionResponse{
		AuthReady:      s.AuthReady,
		SignedIn:       s.SignedIn(),
		Profile:        s.Profile,
		ProfileMissing: s.SignedIn() && s.Profile == nil && !s.ProfileLoading,
		ProfileLoading: s.ProfileLoading,
		Permissions:    access.Derive(s.Profile),
		Version:        s.Version,
	}
	if s.User != nil {
		out.User = &UserResponse{ID: s.User.ID, Email: s.User.Email}
	}
	return out
}

type BootstrapResponse struct {
	Redirect       string           `json:"redirect,omitempty"`
	OnRecoveryPage bool             `json:"on_recovery_page"`
	Session        *SessionResponse `json:"session,omitempty"`
	Recovery       *recovery.View   `json:"recovery,omitempty"`
}
