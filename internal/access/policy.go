// Package access decides what a viewer may see. Every function is pure and
// works only on an already-loaded profile; callers re-derive decisions from
// the current profile on every request instead of caching them.
package access

import "github.com/m3connect/portal/internal/models"

// CanAccess reports whether a viewer with the given profile (nil when signed
// out) may open content published at level.
func CanAccess(profile *models.Profile, level models.AccessLevel) bool {
	if level == models.AccessPublic {
		return true
	}
	if profile == nil {
		return false
	}
	switch level {
	case models.AccessMembers:
		return true
	case models.AccessMarina:
		return IsAdmin(profile) || verifiedMarina(profile)
	default:
		return false
	}
}

// CanSubmitProject reports whether the viewer may send a project brief.
func CanSubmitProject(profile *models.Profile) bool {
	return verifiedMarina(profile)
}

// IsAdmin reports whether the viewer may use the back office.
func IsAdmin(profile *models.Profile) bool {
	return profile != nil && profile.Role == models.RoleAdmin
}

func verifiedMarina(profile *models.Profile) bool {
	return profile != nil && profile.Role == models.RoleMarina && profile.Status == models.StatusVerified
}

// Permissions bundles the derived predicates the UI needs for one render.
type Permissions struct {
	HasProfile       bool                 `json:"has_profile"`
	CanSubmitProject bool                 `json:"can_submit_project"`
	IsAdmin          bool                 `json:"is_admin"`
	Levels           []models.AccessLevel `json:"levels"`
}

// Derive computes the permission bundle for profile.
func Derive(profile *models.Profile) Permissions {
	p := Permissions{
		HasProfile:       profile != nil,
		CanSubmitProject: CanSubmitProject(profile),
		IsAdmin:          IsAdmin(profile),
	}
	for _, level := range []models.AccessLevel{models.AccessPublic, models.AccessMembers, models.AccessMarina} {
		if CanAccess(profile, level) {
			p.Levels = append(p.Levels, level)
		}
	}
	return p
}

// Lock describes why content is hidden; empty when the viewer has access.
func Lock(profile *models.Profile, level models.AccessLevel) string {
	if CanAccess(profile, level) {
		return ""
	}
	switch {
	case level == models.AccessMembers, profile == nil:
		return "signup_required"
	case level == models.AccessMarina:
		return "marina_verification_required"
	default:
		return "unavailable"
	}
}
