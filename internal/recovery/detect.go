// Package recovery routes password-recovery links to the dedicated recovery
// page and drives that page from token exchange to the new password.
package recovery

import (
	"net/url"
	"strings"

	"github.com/m3connect/portal/internal/identity"
)

// Token is the recovery marker carried by a provider redirect.
type Token struct {
	Hash string
	Type string
}

// Valid reports whether t can be exchanged for a recovery session.
func (t Token) Valid() bool {
	return t.Hash != "" && t.Type == identity.OTPRecovery
}

// Query renders t as the query string used on the recovery page.
func (t Token) Query() string {
	q := url.Values{}
	if t.Hash != "" {
		q.Set("token_hash", t.Hash)
	}
	if t.Type != "" {
		q.Set("type", t.Type)
	}
	return q.Encode()
}

// Detect looks for type=recovery in the fragment of rawURL and then in its
// query. The fragment wins because the provider client clears it on startup.
func Detect(rawURL string) (Token, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Token{}, false
	}
	for _, raw := range []string{u.Fragment, u.RawQuery} {
		if t, ok := parseMarker(raw); ok {
			return t, true
		}
	}
	return Token{}, false
}

// Extract returns whatever token parameters rawURL carries, recovery or not.
// The recovery page uses it to tell a missing link from a wrong one.
func Extract(rawURL string) Token {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Token{}
	}
	for _, raw := range []string{u.Fragment, u.RawQuery} {
		q, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
		if err != nil {
			continue
		}
		if t := tokenFrom(q); t.Hash != "" || t.Type != "" {
			return t
		}
	}
	return Token{}
}

func parseMarker(raw string) (Token, bool) {
	if raw == "" {
		return Token{}, false
	}
	q, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return Token{}, false
	}
	t := tokenFrom(q)
	if t.Type != identity.OTPRecovery {
		return Token{}, false
	}
	return t, true
}

func tokenFrom(q url.Values) Token {
	return Token{Hash: q.Get("token_hash"), Type: q.Get("type")}
}
