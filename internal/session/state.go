package session

import (
	"errors"
	"fmt"

	"github.com/m3connect/portal/internal/identity"
	"github.com/m3connect/portal/internal/models"
)

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrPartialSignUp marks a sign-up whose credential exists without a profile.
	ErrPartialSignUp = errors.New("account created but profile is missing")
	// ErrClosed is returned by operations on a torn-down controller.
	ErrClosed = errors.New("session controller closed")
)

// PartialSignUpError reports that the credential was created but the profile
// insert failed. The account is usable; the caller should offer a profile
// refresh rather than treat the user as onboarded.
type PartialSignUpError struct {
	UserID string
	Err    error
}

func (e *PartialSignUpError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPartialSignUp, e.Err)
}

func (e *PartialSignUpError) Unwrap() []error {
	return []error{ErrPartialSignUp, e.Err}
}

// Snapshot is a read-only copy of a controller's state.
type Snapshot struct {
	User           *identity.User
	Session        *identity.Session
	Profile        *models.Profile
	AuthReady      bool
	ProfileLoading bool
	// Version increases with every published change.
	Version uint64
}

// SignedIn reports whether a credential is present.
func (s Snapshot) SignedIn() bool {
	return s.User != nil
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	if s.Profile != nil {
		p := s.Profile.Clone()
		out.Profile = &p
	}
	return out
}

// Location tells the controller whether the visitor is on the recovery page,
// where bootstrap and auth events are left to the recovery flow.
type Location interface {
	OnRecoveryPage() bool
}

// LocationFunc adapts a function to Location.
type LocationFunc func() bool

func (f LocationFunc) OnRecoveryPage() bool { return f() }

// Navigator performs a full navigation to path.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }
