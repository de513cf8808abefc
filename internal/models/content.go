package models

import (
	"encoding/json"
	"strings"
	"time"
)

// AccessLevel is the visibility tier of a resource or event.
type AccessLevel string

const (
	AccessPublic  AccessLevel = "public"
	AccessMembers AccessLevel = "members"
	AccessMarina  AccessLevel = "marina"
)

// ParseAccessLevel maps a stored value onto a known access level.
// Unknown values come back as-is with ok=false; the access policy denies them.
func ParseAccessLevel(value string) (AccessLevel, bool) {
	switch l := AccessLevel(strings.ToLower(strings.TrimSpace(value))); l {
	case AccessPublic, AccessMembers, AccessMarina:
		return l, true
	default:
		return l, false
	}
}

// Resource is a library item (article, guide, replay...).
type Resource struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Summary      string      `json:"summary"`
	Content      *string     `json:"content,omitempty"`
	Type         string      `json:"type"`
	Topic        string      `json:"topic"`
	Language     string      `json:"language"`
	AccessLevel  AccessLevel `json:"access_level"`
	ThumbnailURL *string     `json:"thumbnail_url"`
	FileURL      *string     `json:"file_url,omitempty"`
	PartnerID    *string     `json:"partner_id"`
	Published    bool        `json:"published"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Speaker is an event speaker.
type Speaker struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Event is a webinar, roundtable or conference session.
type Event struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DateTime    time.Time       `json:"date_time"`
	Location    *string         `json:"location"`
	Language    string          `json:"language"`
	AccessLevel AccessLevel     `json:"access_level"`
	Speakers    json.RawMessage `json:"speakers,omitempty"`
	PartnerID   *string         `json:"partner_id"`
	ReplayURL   *string         `json:"replay_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Upcoming reports whether the event starts after now.
func (e Event) Upcoming(now time.Time) bool {
	return e.DateTime.After(now)
}

// Partner is a listed partner company.
type Partner struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LogoURL     *string   `json:"logo_url"`
	Website     *string   `json:"website"`
	Sector      string    `json:"sector"`
	Country     string    `json:"country"`
	IsFeatured  bool      `json:"is_featured"`
	CreatedAt   time.Time `json:"created_at"`
}
