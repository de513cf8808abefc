package models

import "strings"

// Role is the application-level role carried by a profile.
type Role string

const (
	RoleUser    Role = "user"
	RoleMarina  Role = "marina"
	RolePartner Role = "partner"
	RoleAdmin   Role = "admin"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleUser, RoleMarina, RolePartner, RoleAdmin}

// ParseRole maps a stored or submitted value onto a known role.
func ParseRole(value string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(value))); r {
	case RoleUser, RoleMarina, RolePartner, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// Status is the verification status an administrator assigns to a profile.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Statuses lists every known status in display order.
var Statuses = []Status{StatusPending, StatusVerified, StatusRejected}

// ParseStatus maps a stored or submitted value onto a known status.
func ParseStatus(value string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(value))); s {
	case StatusPending, StatusVerified, StatusRejected:
		return s, true
	default:
		return "", false
	}
}

// Organization types offered at sign-up. Only OrgMarinaPort affects the role.
const (
	OrgMarinaPort  = "Marina / Port"
	OrgSupplier    = "Supplier"
	OrgInstitution = "Institution"
	OrgOther       = "Other"
)

// RoleForOrganization derives the self-assigned role for a new account.
// Partner and admin are never self-assigned.
func RoleForOrganization(organizationType string) Role {
	if organizationType == OrgMarinaPort {
		return RoleMarina
	}
	return RoleUser
}
