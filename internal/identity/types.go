// Package identity is the client side of the hosted identity provider:
// credentials, session tokens, recovery-token exchange and the auth-state
// event stream the session controller listens to.
package identity

import (
	"context"
	"time"
)

// User is the identity attached to a credential.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is a token pair issued by the provider.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// expiryMargin refreshes slightly early so a token never expires mid-request.
const expiryMargin = 10 * time.Second

// Expired reports whether the access token should be refreshed before use.
func (s Session) Expired(now time.Time) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return !now.Add(expiryMargin).Before(time.Unix(s.ExpiresAt, 0))
}

// EventKind names an auth-state transition.
type EventKind string

const (
	EventSignedIn         EventKind = "SIGNED_IN"
	EventSignedOut        EventKind = "SIGNED_OUT"
	EventTokenRefreshed   EventKind = "TOKEN_REFRESHED"
	EventPasswordRecovery EventKind = "PASSWORD_RECOVERY"
	EventUserUpdated      EventKind = "USER_UPDATED"
)

// Event is delivered to auth-state subscribers. Session is nil after sign-out.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Handler receives auth-state events.
type Handler func(Event)

// Subscription cancels an OnAuthStateChange registration.
type Subscription interface {
	Unsubscribe()
}

// UserAttributes are the fields UpdateUser can change.
type UserAttributes struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// OTPRecovery is the verification type carried by password-recovery links.
const OTPRecovery = "recovery"

// Provider is the identity provider client consumed by the session
// controller and the recovery page.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (User, error)
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(handler Handler) Subscription
	VerifyOTP(ctx context.Context, tokenHash, otpType string) (Session, error)
	UpdateUser(ctx context.Context, attrs UserAttributes) error
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
}
